// Package mongo connects the ODM to a MongoDB server.
//
// Driver implements odm.Driver on top of the official v2 driver, so models
// compiled by package odm (and the tenancy plugin layered on them) run
// against a real database the same way they run against package memstore
// in tests. Single-document lookups that match nothing return a nil document
// rather than mongo.ErrNoDocuments, and FindOneAnd{Update,Replace} return the
// document as it is after the change.
//
// Configuration is environment driven:
//
//	cfg, err := mongo.LoadConfig() // MONGODB_URL, MONGODB_DATABASE, ...
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	driver, client, err := mongo.Open(ctx, cfg, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect(ctx)
//
//	db := odm.NewDB(driver)
//
// Connection attempts are retried RetryAttempts times, RetryInterval apart;
// failures wrap ErrFailedToConnectToMongo. Healthcheck returns a ping-based
// probe for readiness endpoints.
//
// Schema indexes are converted with IndexModels when odm.DB.SyncIndexes runs.
package mongo
