package vulnmirror

import "github.com/google/uuid"

// KB source tags.
const (
	KBSourceAttackerKB     = "attackerkb"
	KBSourceNucleiTemplate = "nuclei-templates"
	KBSourceExploitDB      = "exploit-db"
)

// KB entry types.
const (
	KBTypeExploit       = "exploit"
	KBTypeKnowledgeBase = "knowledge_base"
)

// KB is one knowledge-base entry: a pointer to a public exploit,
// proof-of-concept or analysis.
//
// (Name, Source) is unique. Name is typically a CVE identifier; when it is,
// ingestion links the entry to the CVE through the cve_knowledge_base edge.
type KB struct {
	ID uuid.UUID `json:"id"`
	// Name is the entry name, typically a CVE id.
	Name string `json:"name"`
	// Source is the feed this entry came from; see the KBSource constants.
	Source string `json:"source"`
	// Type is "exploit" or "knowledge_base".
	Type string `json:"type"`
	// Verified reports whether the source vouches for the entry.
	Verified bool `json:"verified"`
	// Path is a repository path or an external URL.
	Path        string         `json:"path"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}
