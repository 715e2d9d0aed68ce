package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Allowed(t *testing.T) {
	g := NewGate(DefaultTable, nil)

	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleDriver, CreateInspection, true},
		{RoleDriver, BulkExport, false},
		{RoleInspector, ExportInspection, true},
		{RoleSupervisor, BulkExport, true},
		{RoleSupervisor, DeleteInspection, false},
		{RoleFleetManager, DeleteInspection, true},
		{RoleAdmin, ManagePermissions, true},
		{Role("ghost"), ViewInspections, false},
		{RoleAdmin, Action("inspections.teleport"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, g.Allowed(tt.role, tt.action))
		})
	}
}

func TestGate_LookupIsNotImpliedByOrder(t *testing.T) {
	g := NewGate(NewTable(map[Role][]Action{
		RoleDriver: {ViewStats},
		RoleAdmin:  {ViewInspections},
	}), nil)

	assert.True(t, g.Allowed(RoleDriver, ViewStats))
	assert.False(t, g.Allowed(RoleAdmin, ViewStats))
}

func TestGate_Override(t *testing.T) {
	g := NewGate(DefaultTable, nil)
	g.SetOverride(NewTable(map[Role][]Action{RoleDriver: {BulkExport}}))

	assert.True(t, g.Allowed(RoleDriver, BulkExport))
	assert.False(t, g.Allowed(RoleAdmin, BulkExport), "override replaces the table wholesale")
	assert.False(t, g.Allowed(RoleDriver, ViewInspections))

	g.SetOverride(nil)
	assert.True(t, g.Allowed(RoleAdmin, BulkExport))
}

func TestGate_LoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mechanic": ["inspections.view", "inspections.export_bulk"]}`), 0o600))

	g := NewGate(DefaultTable, nil)
	require.NoError(t, g.LoadOverrideFile(path))

	assert.True(t, g.Allowed(RoleMechanic, BulkExport))
	assert.False(t, g.Allowed(RoleAdmin, ViewInspections))
	assert.Equal(t, []Action{BulkExport, ViewInspections}, g.AllowedActions(RoleMechanic))
}

func TestGate_LoadOverrideFileUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pilot": ["inspections.view"]}`), 0o600))

	err := NewGate(DefaultTable, nil).LoadOverrideFile(path)
	assert.ErrorContains(t, err, "unknown role")
}

func TestAtLeast(t *testing.T) {
	cases := []struct {
		role, min Role
		want      bool
	}{
		{RoleAdmin, RoleSupervisor, true},
		{RoleSupervisor, RoleSupervisor, true},
		{RoleFleetManager, RoleDriver, true},
		{RoleDriver, RoleInspector, false},
		{RoleMechanic, RoleAdmin, false},
		{Role("ghost"), RoleDriver, false},
		{Role(""), RoleDriver, false},
		{RoleDriver, Role("ghost"), false},
	}
	for _, c := range cases {
		t.Run(string(c.role)+">="+string(c.min), func(t *testing.T) {
			assert.Equal(t, c.want, AtLeast(c.role, c.min))
		})
	}
}
