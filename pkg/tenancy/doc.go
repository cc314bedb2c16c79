// Package tenancy adds document-level multi-tenancy to odm schemas.
//
// Applying the plugin to a schema declares an indexed tenant field, scopes
// every unique index to the tenant, attaches an accessor that hands out
// tenant-bound models and installs hooks that force the bound tenant into
// filters, update payloads and saved documents.
//
// Basic usage:
//
//	schema := odm.NewSchema(odm.Field{Name: "email", Type: odm.String})
//	if _, err := tenancy.Apply(schema); err != nil {
//		return err
//	}
//	users, err := db.Register("User", schema)
//	if err != nil {
//		return err
//	}
//
//	acme, err := tenancy.ByTenant(users, "acme")
//	if err != nil {
//		return err
//	}
//	docs, err := acme.Find(ctx, bson.M{}) // only acme's users
//
// A bound model ignores tenant values supplied by the caller: a filter of
// {tenant: "globex"} on acme's model still matches only acme's documents,
// and inserts or saves are stamped with "acme".
//
// # Propagation
//
// A bound model's DB resolves other models bound to the same tenant when
// their plugin uses the same tenant key, so populated references stay
// inside the tenant. Models without the plugin, or with a different key,
// are returned unbound.
//
// # Configuration
//
// Options come from functional options, from MONGO_TENANT_* environment
// variables via LoadOptions, or from YAML via ParseOptionsYAML:
//
//	opts, err := tenancy.LoadOptions()
//	if err != nil {
//		return err
//	}
//	p := tenancy.New(tenancy.WithOptions(opts), tenancy.WithLogger(log))
//
// Bound models are cached per model name and tenant id for the lifetime of
// the plugin. Ids are keyed by their printed form, so 1 and "1" share a
// bound model.
package tenancy
