// Package models defines the domain entities shared by the batch engine and its stores.
//
// The package contains two categories of types:
//
// 1. Persistent entities:
//   - [User] : Directory account with roles, the source of a migration
//   - [Affiliate] : Affiliate account converted from a [User]
//
// 2. Query values passed across store boundaries:
//   - [UserQuery] : Role filter, exclusion set, pagination and field selection for directory lookups
//
// Entities implement [Model] so stores can validate them before writing.
package models
