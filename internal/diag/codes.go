package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Ошибки I/O
	IOLoadFileError Code = 1001
	IOMetadata      Code = 1002

	// Crate description loader
	InpInfo          Code = 2000
	InpBadDocument   Code = 2001
	InpUnknownItem   Code = 2002
	InpBadType       Code = 2003
	InpBadGenerics   Code = 2004
	InpBadSignature  Code = 2005
	InpMissingKey    Code = 2006
	InpBadVisibility Code = 2007

	// Name resolution
	ResInfo            Code = 3000
	ResUnresolved      Code = 3001
	ResUnknownLifetime Code = 3002
	ResUnknownCrate    Code = 3003
	ResDuplicateName   Code = 3004

	// Type collection
	CollectInfo                  Code = 4000
	CollectDuplicateField        Code = 4001
	CollectDuplicateMethod       Code = 4002
	CollectDuplicateSupertrait   Code = 4003
	CollectForwardDefault        Code = 4004
	CollectBoundsNotAllowed      Code = 4005
	CollectNonVirtualSuperstruct Code = 4006
	CollectBuiltinKindImpl       Code = 4007
	CollectTypePlaceholder       Code = 4008
	CollectNotATrait             Code = 4009
	CollectForeignGenerics       Code = 4010
	CollectForeignPattern        Code = 4011
	CollectWrongTypeArgCount     Code = 4012
	CollectWrongLifetimeArgCount Code = 4013
	CollectMissingLifetime       Code = 4014
	CollectTraitAsType           Code = 4015
	CollectNotAType              Code = 4016
	CollectUnexpectedDef         Code = 4017
	CollectCycle                 Code = 4090
	CollectInternal              Code = 4099

	// Crate metadata
	MetaInfo       Code = 5000
	MetaVersion    Code = 5001
	MetaCorrupt    Code = 5002
	MetaUnknownDef Code = 5003

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:                  "Unknown error",
	IOLoadFileError:              "Failed to load file",
	IOMetadata:                   "Failed to read crate metadata",
	InpInfo:                      "Crate description information",
	InpBadDocument:               "Malformed crate description",
	InpUnknownItem:               "Unknown item kind",
	InpBadType:                   "Malformed type expression",
	InpBadGenerics:               "Malformed generic parameter",
	InpBadSignature:              "Malformed function signature",
	InpMissingKey:                "Missing required key",
	InpBadVisibility:             "Unknown visibility",
	ResInfo:                      "Name resolution information",
	ResUnresolved:                "Unresolved name",
	ResUnknownLifetime:           "Undeclared lifetime",
	ResUnknownCrate:              "Unknown extern crate",
	ResDuplicateName:             "Duplicate definition",
	CollectInfo:                  "Type collection information",
	CollectDuplicateField:        "Duplicate field",
	CollectDuplicateMethod:       "Duplicate method",
	CollectDuplicateSupertrait:   "Duplicate supertrait",
	CollectForwardDefault:        "Default refers to a later type parameter",
	CollectBoundsNotAllowed:      "Trait bounds are not allowed here",
	CollectNonVirtualSuperstruct: "Superstruct is not virtual",
	CollectBuiltinKindImpl:       "Explicit implementation of a builtin kind",
	CollectTypePlaceholder:       "Type placeholder in item signature",
	CollectNotATrait:             "Not a trait",
	CollectForeignGenerics:       "Foreign function with type parameters",
	CollectForeignPattern:        "Pattern in foreign function declaration",
	CollectWrongTypeArgCount:     "Wrong number of type arguments",
	CollectWrongLifetimeArgCount: "Wrong number of lifetime arguments",
	CollectMissingLifetime:       "Missing lifetime specifier",
	CollectTraitAsType:           "Trait used as a type",
	CollectNotAType:              "Not a type",
	CollectUnexpectedDef:         "Unexpected definition kind",
	CollectCycle:                 "Cyclic type dependency",
	CollectInternal:              "Internal compiler error",
	MetaInfo:                     "Metadata information",
	MetaVersion:                  "Incompatible metadata format",
	MetaCorrupt:                  "Corrupt metadata",
	MetaUnknownDef:               "Unknown definition in metadata",
	ObsInfo:                      "Observability information",
	ObsTimings:                   "Timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("INP%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("COL%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("META%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
