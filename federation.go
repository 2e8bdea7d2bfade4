package fedds

import (
	"errors"
	"fmt"
	"strings"
)

// FederationType selects the federation context a Database switches
// every connection into.
type FederationType int

const (
	// FederationNone is a plain, non-federated database.
	FederationNone FederationType = iota
	// FederationRoot is the federation root.
	FederationRoot
	// FederationMember is the single member whose range holds the key.
	FederationMember
	// FederationAll fans Exec out over every member.
	FederationAll
)

const (
	rootStatement      = "USE FEDERATION ROOT WITH RESET"
	memberStatement    = "USE FEDERATION %s (%s='%s') WITH RESET, FILTERING = %s"
	discoveryStatement = "SELECT CAST(range_high as bigint) FROM sys.federation_member_distributions"
)

var federationTypeNames = map[FederationType]string{
	FederationNone:   "none",
	FederationRoot:   "root",
	FederationMember: "member",
	FederationAll:    "all",
}

func (t FederationType) String() string {
	if name, ok := federationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FederationType(%d)", int(t))
}

// ParseFederationType accepts none, root, member and all (case-insensitive).
// An empty string is none.
func ParseFederationType(s string) (FederationType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FederationNone, nil
	}
	for t, name := range federationTypeNames {
		if name == s {
			return t, nil
		}
	}
	return FederationNone, fmt.Errorf("fedds: unknown federation type %q", s)
}

// FederationTarget is the federation context of a Database. It is fixed
// when the handle is built.
type FederationTarget struct {
	Type         FederationType
	Name         string
	Distribution string
	Key          any
}

// RootTarget targets the root of the named federation.
func RootTarget(name string) FederationTarget {
	return FederationTarget{Type: FederationRoot, Name: name}
}

// MemberTarget targets the member of federation name whose distribution
// range holds key.
func MemberTarget(name, distribution string, key any) FederationTarget {
	return FederationTarget{Type: FederationMember, Name: name, Distribution: distribution, Key: key}
}

// AllMembersTarget fans Exec out over every member of the federation.
func AllMembersTarget(name, distribution string) FederationTarget {
	return FederationTarget{Type: FederationAll, Name: name, Distribution: distribution}
}

func (t FederationTarget) Validate() error {
	switch t.Type {
	case FederationNone, FederationRoot:
		return nil
	case FederationMember, FederationAll:
		if t.Name == "" {
			return errors.New("fedds: federation name is required")
		}
		if t.Distribution == "" {
			return errors.New("fedds: distribution name is required")
		}
		if t.Type == FederationMember && t.Key == nil {
			return errors.New("fedds: federation key is required for a member target")
		}
		return nil
	default:
		return fmt.Errorf("fedds: invalid federation type %d", int(t.Type))
	}
}

// BuildStatement renders the context switch for the target's own scope
// and key.
func BuildStatement(t FederationTarget, filterOn bool) string {
	return t.Statement(t.Type, t.Key, filterOn)
}

// Statement renders the context switch into scope. A root scope, or a
// target configured as root, always yields the root statement.
func (t FederationTarget) Statement(scope FederationType, key any, filterOn bool) string {
	if scope == FederationRoot || t.Type == FederationRoot {
		return rootStatement
	}
	filtering := "OFF"
	if filterOn {
		filtering = "ON"
	}
	return fmt.Sprintf(memberStatement, t.Name, t.Distribution, formatKey(key), filtering)
}

func formatKey(key any) string {
	if key == nil {
		return ""
	}
	return strings.ReplaceAll(fmt.Sprint(key), "'", "''")
}
