// Package metadata writes and loads the collected item types of a crate so
// that dependent crates can refer to them through `extern crate`.
//
// A metadata file is a single msgpack document. Types are flattened into a
// table in dependency order and re-interned on load; definition ids are
// stored relative to a crate table whose entry 0 is the crate itself.
package metadata

import "errors"

// FormatVersion is the semver of the document layout written by Write.
const FormatVersion = "1.0.0"

// DefaultConstraint accepts any 1.x document.
const DefaultConstraint = "^1.0"

var (
	// ErrVersion reports a document whose format version is rejected by the constraint.
	ErrVersion = errors.New("incompatible metadata format")
	// ErrCorrupt reports a document that decodes but does not describe a consistent crate.
	ErrCorrupt = errors.New("corrupt metadata")
)

// wireDef is a definition id; Crate indexes document.Deps.
type wireDef struct {
	_msgpack struct{} `msgpack:",as_array"`
	Crate    uint32
	Node     uint32
}

type wireRegion struct {
	_msgpack struct{} `msgpack:",as_array"`
	Kind     uint8
	Def      wireDef
	Index    uint32
	Name     string
	Binder   wireDef
	Anon     uint32
}

// Type references are table positions plus one; 0 is "no type".
type wireSubsts struct {
	Regions []wireRegion `msgpack:"r,omitempty"`
	Self    uint32       `msgpack:"s,omitempty"`
	Types   []uint32     `msgpack:"t,omitempty"`
}

type wireSig struct {
	Binder   wireDef  `msgpack:"b"`
	Inputs   []uint32 `msgpack:"i,omitempty"`
	Output   uint32   `msgpack:"o,omitempty"`
	Variadic bool     `msgpack:"v,omitempty"`
	Style    uint8    `msgpack:"st,omitempty"`
	ABI      uint8    `msgpack:"abi,omitempty"`
}

type wireType struct {
	Kind    uint8       `msgpack:"k"`
	Elem    uint32      `msgpack:"e,omitempty"`
	Width   uint8       `msgpack:"w,omitempty"`
	Mutable bool        `msgpack:"m,omitempty"`
	Region  *wireRegion `msgpack:"r,omitempty"`
	Def     *wireDef    `msgpack:"d,omitempty"`
	Index   uint32      `msgpack:"x,omitempty"`
	Elems   []uint32    `msgpack:"l,omitempty"`
	Sig     *wireSig    `msgpack:"sig,omitempty"`
	Substs  *wireSubsts `msgpack:"sub,omitempty"`
}

type wireTraitRef struct {
	Def    wireDef    `msgpack:"d"`
	Substs wireSubsts `msgpack:"s"`
}

type wireTypeParam struct {
	Ident   string         `msgpack:"n"`
	Def     wireDef        `msgpack:"d"`
	Index   uint32         `msgpack:"i"`
	Builtin uint8          `msgpack:"b,omitempty"`
	Traits  []wireTraitRef `msgpack:"t,omitempty"`
	Default uint32         `msgpack:"def,omitempty"`
}

type wireRegionParam struct {
	_msgpack struct{} `msgpack:",as_array"`
	Name     string
	Def      wireDef
	Index    uint32
}

type wireGenerics struct {
	Types   []wireTypeParam   `msgpack:"t,omitempty"`
	Regions []wireRegionParam `msgpack:"r,omitempty"`
}

type wireScheme struct {
	Def      wireDef      `msgpack:"d"`
	Generics wireGenerics `msgpack:"g"`
	Ty       uint32       `msgpack:"ty"`
}

type wireTrait struct {
	Def         wireDef        `msgpack:"d"`
	Generics    wireGenerics   `msgpack:"g"`
	Bounds      uint8          `msgpack:"b,omitempty"`
	Ref         wireTraitRef   `msgpack:"ref"`
	Supertraits []wireTraitRef `msgpack:"sup,omitempty"`
	Methods     []wireDef      `msgpack:"m,omitempty"`
}

type wireMethod struct {
	Def            wireDef      `msgpack:"d"`
	Ident          string       `msgpack:"n"`
	Generics       wireGenerics `msgpack:"g"`
	Fty            uint32       `msgpack:"ty"`
	SelfKind       uint8        `msgpack:"sk,omitempty"`
	SelfMutable    bool         `msgpack:"sm,omitempty"`
	Vis            uint8        `msgpack:"v,omitempty"`
	ContainerKind  uint8        `msgpack:"ck,omitempty"`
	Container      wireDef      `msgpack:"c"`
	ProvidedSource wireDef      `msgpack:"ps"`
}

type wireField struct {
	_msgpack struct{} `msgpack:",as_array"`
	Name     string
	ID       wireDef
	Vis      uint8
	Origin   wireDef
}

type wireStruct struct {
	Def    wireDef     `msgpack:"d"`
	Fields []wireField `msgpack:"f,omitempty"`
	// Super is the zero def for structs without a superstruct.
	Super wireDef `msgpack:"s"`
}

type wireExport struct {
	Path string  `msgpack:"p"`
	Kind uint8   `msgpack:"k"`
	Def  wireDef `msgpack:"d"`
}

type wireLang struct {
	Name string  `msgpack:"n"`
	Def  wireDef `msgpack:"d"`
}

type wireName struct {
	Def  wireDef `msgpack:"d"`
	Name string  `msgpack:"n"`
}

// document is the top-level msgpack value. Deps[0] is the crate itself.
type document struct {
	Format  string       `msgpack:"format"`
	Crate   string       `msgpack:"crate"`
	Deps    []string     `msgpack:"deps"`
	Types   []wireType   `msgpack:"types"`
	Schemes []wireScheme `msgpack:"schemes"`
	Traits  []wireTrait  `msgpack:"traits"`
	Methods []wireMethod `msgpack:"methods"`
	Structs []wireStruct `msgpack:"structs"`
	Exports []wireExport `msgpack:"exports"`
	Lang    []wireLang   `msgpack:"lang"`
	Names   []wireName   `msgpack:"names"`
}
