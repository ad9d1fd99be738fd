// Package repositories implements SQLite persistence for the migration's external collaborators.
//
// Key Implementations:
//   - [UserRepository] : User directory with role filtering, exclusion sets and offset pagination
//   - [AffiliateRepository] : Affiliate records created by the migration
//   - [OptionRepository] : Key/value options table used as a batch progress store
//
// Set-valued filters (roles, excluded ids) are bound as a single JSON array parameter and expanded with
// SQLite's json_each, so exclusion sets of any size never hit the bound-parameter limit.
package repositories
