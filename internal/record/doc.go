// Package record defines the serialized form of an exported record.
//
// A SerializedRecord is one exportable unit: its identity, the identities it
// references, out-of-band plugin options, and the attribute payload for the
// default locale plus any translations. Records are read from and written to
// one YAML file each:
//
//	_meta:
//	  entity_type: node
//	  bundle: article
//	  uuid: 6b1e...
//	  default_langcode: en
//	  depends:
//	    0c8f...: taxonomy_term
//	default:
//	  title:
//	    - value: Hello
//	translations:
//	  fr:
//	    title:
//	      - value: Bonjour
//
// This package imports nothing internal. All other internal packages import
// record, so it stays the foundational layer.
//
// Key constraints:
//   - identity is the dependency-graph key and never changes once set
//   - a record never depends on itself
//   - translations are never keyed by the default locale
//   - empty options and empty translations are omitted from the canonical form
package record
