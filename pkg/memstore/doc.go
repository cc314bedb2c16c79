// Package memstore provides an in-process implementation of odm.Driver.
//
// It evaluates the subset of MongoDB query, update and aggregation syntax the
// odm and tenancy packages emit, which makes it suitable for tests and for
// embedding without a database server.
//
// Supported features:
//
//   - filters: implicit equality, $eq, $ne, $in, $nin, $gt, $gte, $lt, $lte,
//     $exists, $and, $or, $nor
//   - updates: $set, $unset, $inc
//   - pipeline stages: $match, $sort, $skip, $limit, $count
//   - unique, sparse and partial indexes
//
// Anything else fails with ErrUnsupported.
//
// Basic usage:
//
//	store := memstore.New()
//	db := odm.NewDB(store)
//
// Documents handed to and returned by the store are deep copies, so callers
// can mutate them freely.
package memstore
