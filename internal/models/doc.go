// Package models defines the records shared between storage, the ledger core and the RPC
// layer.
//
// # Expense
//
// An Expense is one shared cost inside a household. Its JSON field names are the only
// bit-exact contract with other clients of the same data:
//
//   - date: ISO-8601 calendar date (YYYY-MM-DD)
//   - amount: non-negative integer currency units
//   - split: ordered list of {uidOrEmail, ratio}
//   - conciliado: settlement flag
//
// Records are replaced as a whole on edit. Only the settlement flag and the household id
// are ever patched in place (see FieldUpdate).
//
// # Defensive decoding
//
// Amount and Ratio never fail to decode. Missing, null, non-numeric or non-finite values
// decode to zero so that one malformed record degrades to a zero contribution instead of
// breaking a whole snapshot.
package models
