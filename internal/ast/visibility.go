package ast

// Visibility описывает доступность элемента.
type Visibility uint8

const (
	VisInherited Visibility = iota
	VisPublic
	VisPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisPublic:
		return "public"
	case VisPrivate:
		return "private"
	default:
		return "inherited"
	}
}

// InheritFrom resolves an inherited visibility against the enclosing one.
func (v Visibility) InheritFrom(parent Visibility) Visibility {
	if v == VisInherited {
		return parent
	}
	return v
}
