package vulnmirror

// CWEStatus is the catalog status of a weakness entry.
type CWEStatus string

const (
	CWEDraft      CWEStatus = "Draft"
	CWEIncomplete CWEStatus = "Incomplete"
	CWEStable     CWEStatus = "Stable"
	CWEObsolete   CWEStatus = "Obsolete"
	CWEDeprecated CWEStatus = "Deprecated"
)

// CWE is one entry of the weakness catalog.
type CWE struct {
	// ID is the integer catalog identifier, e.g. 79 for "CWE-79".
	ID int `json:"id"`
	// Name is the English catalog name.
	Name string `json:"name"`
	// Status is the catalog lifecycle state.
	Status CWEStatus `json:"status"`
	// Description is the English description.
	Description string `json:"description"`
	// NameZH and DescriptionZH are the optional localizations.
	NameZH        string `json:"name_zh,omitempty"`
	DescriptionZH string `json:"description_zh,omitempty"`
	// Remediation is the optional mitigation text.
	Remediation string `json:"remediation,omitempty"`
}
