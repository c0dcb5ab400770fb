package logg

const (
	Layer     = "layer"
	Operation = "operation"
	RequestID = "request_id"
	URL       = "url"
	Selector  = "selector"
	Element   = "element"
	Path      = "path"
)
