package fedds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStatementRootIgnoresFiltering(t *testing.T) {
	for _, filterOn := range []bool{true, false} {
		require.Equal(t, "USE FEDERATION ROOT WITH RESET", BuildStatement(RootTarget("Orders_Fed"), filterOn))
	}
}

func TestBuildStatementMember(t *testing.T) {
	target := MemberTarget("Orders_Fed", "Tenant_ID", 42)

	require.Equal(t,
		"USE FEDERATION Orders_Fed (Tenant_ID='42') WITH RESET, FILTERING = ON",
		BuildStatement(target, true))
	require.Equal(t,
		"USE FEDERATION Orders_Fed (Tenant_ID='42') WITH RESET, FILTERING = OFF",
		BuildStatement(target, false))
}

func TestStatementRootHandleWinsOverMemberScope(t *testing.T) {
	target := RootTarget("Orders_Fed")
	require.Equal(t, "USE FEDERATION ROOT WITH RESET", target.Statement(FederationMember, int64(100), true))
	require.Equal(t, "USE FEDERATION ROOT WITH RESET", target.Statement(FederationMember, int64(100), false))
}

func TestStatementRootScopeOnMemberHandle(t *testing.T) {
	target := MemberTarget("Orders_Fed", "Tenant_ID", 42)
	require.Equal(t, "USE FEDERATION ROOT WITH RESET", target.Statement(FederationRoot, 42, true))
}

func TestStatementOverridesKey(t *testing.T) {
	target := AllMembersTarget("Orders_Fed", "Tenant_ID")
	require.Equal(t,
		"USE FEDERATION Orders_Fed (Tenant_ID='500') WITH RESET, FILTERING = OFF",
		target.Statement(FederationMember, int64(500), false))
}

func TestStatementEscapesQuotesInKey(t *testing.T) {
	target := MemberTarget("Customers", "Name", "o'brien")
	require.Equal(t,
		"USE FEDERATION Customers (Name='o''brien') WITH RESET, FILTERING = ON",
		BuildStatement(target, true))
}

func TestParseFederationType(t *testing.T) {
	tests := []struct {
		in      string
		want    FederationType
		wantErr bool
	}{
		{in: "", want: FederationNone},
		{in: "none", want: FederationNone},
		{in: "Root", want: FederationRoot},
		{in: " member ", want: FederationMember},
		{in: "ALL", want: FederationAll},
		{in: "shard", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFederationType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) FederationType {
	t.Helper()
	ft, err := ParseFederationType(s)
	require.NoError(t, err)
	return ft
}

func TestFederationTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  FederationTarget
		wantErr bool
	}{
		{name: "none", target: FederationTarget{}},
		{name: "root without name", target: FederationTarget{Type: FederationRoot}},
		{name: "member", target: MemberTarget("f", "d", 1)},
		{name: "member without key", target: MemberTarget("f", "d", nil), wantErr: true},
		{name: "member without name", target: MemberTarget("", "d", 1), wantErr: true},
		{name: "all", target: AllMembersTarget("f", "d")},
		{name: "all without distribution", target: AllMembersTarget("f", ""), wantErr: true},
		{name: "unknown type", target: FederationTarget{Type: FederationType(9)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
