// Package models defines the core domain models for the group expense ledger.
//
// The ledger tracks shared expenses inside a group: every expense is split
// into one Split row per participating member, and settlements retire the
// debt those splits represent. Splits are the ground truth for who owes
// what; the expense-level settled flag is a convenience cache derived from
// its splits.
//
// Monetary amounts are shopspring decimals with two fractional digits.
// Relationships are expressed as ID strings rather than pointers to avoid
// circular references between models.
package models
