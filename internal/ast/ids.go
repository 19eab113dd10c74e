package ast

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// NodeID идентифицирует узел дерева внутри одного крейта.
	NodeID uint32
	// CrateNum различает крейты: локальный и подключённые extern-крейты.
	CrateNum uint32
)

const (
	NoNodeID   NodeID   = 0
	LocalCrate CrateNum = 0
)

func (id NodeID) IsValid() bool { return id != NoNodeID }

// DefID is a crate-qualified definition identifier.
type DefID struct {
	Crate CrateNum
	Node  NodeID
}

// NoDefID marks the absence of a definition.
var NoDefID = DefID{}

// LocalDef wraps a node of the crate being compiled.
func LocalDef(id NodeID) DefID {
	return DefID{Crate: LocalCrate, Node: id}
}

func (d DefID) IsLocal() bool { return d.Crate == LocalCrate }
func (d DefID) IsValid() bool { return d.Node != NoNodeID }

func (d DefID) String() string {
	return strconv.FormatUint(uint64(d.Crate), 10) + ":" + strconv.FormatUint(uint64(d.Node), 10)
}

// ParseDefID parses the "crate:node" form produced by DefID.String.
func ParseDefID(s string) (DefID, error) {
	crate, node, ok := strings.Cut(s, ":")
	if !ok {
		return NoDefID, fmt.Errorf("malformed def id %q", s)
	}
	c, err := strconv.ParseUint(crate, 10, 32)
	if err != nil {
		return NoDefID, fmt.Errorf("malformed def id %q: %w", s, err)
	}
	n, err := strconv.ParseUint(node, 10, 32)
	if err != nil {
		return NoDefID, fmt.Errorf("malformed def id %q: %w", s, err)
	}
	return DefID{Crate: CrateNum(c), Node: NodeID(n)}, nil
}
