// Package permission is the static role to action table that decides which
// dashboard actions a user may perform.
package permission

import (
	"log/slog"
	"sort"
	"sync/atomic"
)

type Role string

type Action string

// Roles in ascending privilege order.
const (
	RoleDriver       Role = "driver"
	RoleInspector    Role = "inspector"
	RoleMechanic     Role = "mechanic"
	RoleSupervisor   Role = "supervisor"
	RoleFleetManager Role = "fleet_manager"
	RoleAdmin        Role = "admin"
)

var roleOrder = []Role{RoleDriver, RoleInspector, RoleMechanic, RoleSupervisor, RoleFleetManager, RoleAdmin}

const (
	ViewVehicles      Action = "vehicles.view"
	ManageAssignments Action = "assignments.manage"
	ViewInspections   Action = "inspections.view"
	CreateInspection  Action = "inspections.create"
	DeleteInspection  Action = "inspections.delete"
	ExportInspection  Action = "inspections.export"
	BulkExport        Action = "inspections.export_bulk"
	ViewStats         Action = "stats.view"
	ManagePermissions Action = "permissions.manage"
)

// Table maps a role to the set of actions it may perform.
type Table map[Role]map[Action]struct{}

func NewTable(rules map[Role][]Action) Table {
	t := make(Table, len(rules))
	for role, actions := range rules {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		t[role] = set
	}
	return t
}

func (t Table) has(action Action) bool {
	for _, set := range t {
		if _, ok := set[action]; ok {
			return true
		}
	}
	return false
}

var DefaultTable = NewTable(map[Role][]Action{
	RoleDriver:     {ViewVehicles, ViewInspections, CreateInspection},
	RoleInspector:  {ViewVehicles, ViewInspections, CreateInspection, ExportInspection},
	RoleMechanic:   {ViewVehicles, ViewInspections, CreateInspection, ExportInspection, ViewStats},
	RoleSupervisor: {ViewVehicles, ViewInspections, CreateInspection, ExportInspection, BulkExport, ViewStats},
	RoleFleetManager: {
		ViewVehicles, ManageAssignments, ViewInspections, CreateInspection, DeleteInspection,
		ExportInspection, BulkExport, ViewStats,
	},
	RoleAdmin: {
		ViewVehicles, ManageAssignments, ViewInspections, CreateInspection, DeleteInspection,
		ExportInspection, BulkExport, ViewStats, ManagePermissions,
	},
})

// Gate answers allow/deny questions. An override table, when set, replaces the
// static table for every check.
type Gate struct {
	static   Table
	override atomic.Pointer[Table]
	log      *slog.Logger
}

func NewGate(static Table, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{static: static, log: log}
}

func (g *Gate) table() Table {
	if o := g.override.Load(); o != nil {
		return *o
	}
	return g.static
}

func (g *Gate) SetOverride(t Table) {
	if t == nil {
		g.override.Store(nil)
		return
	}
	g.override.Store(&t)
}

// Allowed is a direct membership test, role ordering plays no part.
func (g *Gate) Allowed(role Role, action Action) bool {
	table := g.table()
	if !table.has(action) {
		g.log.Warn("permission.gate.unknown_action",
			slog.String("action", string(action)),
			slog.String("role", string(role)),
		)
		return false
	}
	set, ok := table[role]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// AllowedActions lists what role may do, sorted.
func (g *Gate) AllowedActions(role Role) []Action {
	set := g.table()[role]
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func rank(role Role) int {
	for i, r := range roleOrder {
		if r == role {
			return i
		}
	}
	return -1
}

// AtLeast reports whether role ranks at or above min. It is false when
// either role is unknown.
func AtLeast(role, min Role) bool {
	r, m := rank(role), rank(min)
	return r >= 0 && m >= 0 && r >= m
}

func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, rank(role) >= 0
}

func Roles() []Role {
	return append([]Role(nil), roleOrder...)
}
