// Package entries persists inspection entries of the local store.
//
// An entry is addressed by id and, within its inspection, by the composite
// key (section_ref, field_key). The field value is kept in its wire JSON
// form and decoded into a models.FieldValue on read; attachments are kept
// as an ordered JSON list on the row.
package entries
