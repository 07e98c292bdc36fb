package wikitools

// Space is one wiki space as returned by the upstream listing API.
type Space struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Page is a wiki page. Search results carry the same shape with an empty
// body.
type Page struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SpaceKey string `json:"spaceKey,omitempty"`
	Status   string `json:"status,omitempty"`
	Body     string `json:"body,omitempty"`
	Version  int    `json:"version,omitempty"`
}

// Comment is one comment on a page.
type Comment struct {
	ID        string `json:"id"`
	PageID    string `json:"pageId,omitempty"`
	Author    string `json:"author,omitempty"`
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// listEnvelope is the upstream's paginated listing shape. The _links values
// are raw link strings; cursor extraction happens in the aggregator.
type listEnvelope[T any] struct {
	Results   []T `json:"results"`
	Size      int `json:"size"`
	TotalSize int `json:"totalSize"`
	Links     struct {
		Next string `json:"next"`
		Prev string `json:"prev"`
	} `json:"_links"`
}

// createPageRequest is the upstream page-creation body.
type createPageRequest struct {
	SpaceKey string `json:"spaceKey"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}
