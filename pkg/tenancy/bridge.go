package tenancy

import (
	"github.com/dmitrymomot/mongotenant/pkg/logger"
	"github.com/dmitrymomot/mongotenant/pkg/odm"
)

// tenantDB is a connection bound to a tenant. Model resolution hands out
// models bound to the same tenant when their plugin is compatible; every
// other call goes to the base connection.
type tenantDB struct {
	odm.Connection

	plugin   *Plugin
	tenantID any
}

func (p *Plugin) createTenantAwareDB(base odm.Connection, tenantID any) odm.Connection {
	return &tenantDB{Connection: base, plugin: p, tenantID: tenantID}
}

// Model resolves name on the base connection. Models without a compatible
// plugin are returned unbound.
func (db *tenantDB) Model(name string) (odm.Model, error) {
	m, err := db.Connection.Model(name)
	if err != nil {
		return nil, err
	}

	other, _ := m.Static(StaticName)
	if !db.plugin.IsCompatibleTo(other) {
		db.unbound(m)
		return m, nil
	}
	acc, ok := AccessorOf(m, other.(Introspector).AccessorMethod())
	if !ok {
		db.unbound(m)
		return m, nil
	}
	db.plugin.metrics.propagation(m.Name(), true)
	return acc(m, db.tenantID), nil
}

func (db *tenantDB) unbound(m odm.Model) {
	db.plugin.metrics.propagation(m.Name(), false)
	db.plugin.logger.Debug("tenant not propagated",
		logger.Component("tenancy"),
		logger.Model(m.Name()),
		logger.Tenant(db.tenantID),
	)
}
