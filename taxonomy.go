package chdata

// DefaultNamespacePrefix is the synthetic key under which a document's
// default (unprefixed) xmlns declaration is recorded. Dropping such an entry
// would make an otherwise-resolvable document appear taxonomy-less.
const DefaultNamespacePrefix = "default"

// TaxonomyRole identifies which logical vocabulary a namespace covers.
type TaxonomyRole string

const (
	// RoleCore covers financial-reporting concepts (turnover, assets, ...).
	RoleCore TaxonomyRole = "core"
	// RoleBusiness covers descriptive concepts (report dates, entity info).
	RoleBusiness TaxonomyRole = "business"
)

// frcNamespaces lists the known namespace URIs of the annual UK FRC taxonomy
// releases, by role. Newer releases go first; matching is by membership, so
// the order only matters for readability.
var frcNamespaces = map[TaxonomyRole][]string{
	RoleCore: {
		"http://xbrl.frc.org.uk/fr/2023-01-01/core",
		"http://xbrl.frc.org.uk/fr/2022-01-01/core",
		"http://xbrl.frc.org.uk/fr/2021-01-01/core",
	},
	RoleBusiness: {
		"http://xbrl.frc.org.uk/cd/2023-01-01/business",
		"http://xbrl.frc.org.uk/cd/2022-01-01/business",
		"http://xbrl.frc.org.uk/cd/2021-01-01/business",
	},
}

// TaxonomyBinding records which namespace prefixes a specific document uses
// for the core and business taxonomy roles. It is resolved once per document
// and passed through the extraction chain; either prefix may be empty when
// the document declares no matching namespace.
type TaxonomyBinding struct {
	CorePrefix     string
	BusinessPrefix string

	// Namespaces is the document's raw prefix -> URI declaration table,
	// kept for diagnostics.
	Namespaces map[string]string
}

// CoreBound reports whether the financial-reporting role resolved.
func (b TaxonomyBinding) CoreBound() bool { return b.CorePrefix != "" }

// BusinessBound reports whether the descriptive role resolved.
func (b TaxonomyBinding) BusinessBound() bool { return b.BusinessPrefix != "" }

// Unbound reports whether no known taxonomy matched at all. Tag-based
// extraction is skipped for such documents; the table fallback still runs.
func (b TaxonomyBinding) Unbound() bool { return !b.CoreBound() && !b.BusinessBound() }

// ResolveTaxonomy matches a document's declared namespace table (prefix ->
// URI, with any default namespace under DefaultNamespacePrefix) against the
// known FRC taxonomy releases and returns the binding for both roles.
func ResolveTaxonomy(namespaces map[string]string) TaxonomyBinding {
	binding := TaxonomyBinding{Namespaces: namespaces}
	binding.CorePrefix = matchRole(namespaces, RoleCore)
	binding.BusinessPrefix = matchRole(namespaces, RoleBusiness)
	return binding
}

func matchRole(namespaces map[string]string, role TaxonomyRole) string {
	for prefix, uri := range namespaces {
		for _, known := range frcNamespaces[role] {
			if uri == known {
				return prefix
			}
		}
	}
	return ""
}
