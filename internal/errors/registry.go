package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No prowser.json or prowser.yaml was found at the given path. Run 'prowser init' to create one.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Configuration validation failed",
		Detail:   "One or more configuration values are out of range or missing.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Configuration file already exists",
		Detail:   "Refusing to overwrite an existing configuration file. Pass --force to replace it.",
	},

	// ============================================
	// Source Errors (E200-E249)
	// ============================================

	"E200": {
		Category: CategorySource,
		Message:  "Document not found",
		Detail:   "The location does not name an existing document.",
	},
	"E201": {
		Category: CategorySource,
		Message:  "Unsupported location scheme",
		Detail:   "Documents can be loaded from http, https, file and, when configured, s3 locations.",
	},
	"E202": {
		Category: CategorySource,
		Message:  "Server returned an error status",
		Detail:   "The document's server answered with a non-2xx status.",
	},
	"E203": {
		Category: CategorySource,
		Message:  "Document could not be fetched",
		Detail:   "The loader failed before a response was read.",
	},
	"E204": {
		Category: CategorySource,
		Message:  "Form cannot be submitted",
		Detail:   "The form's action names a location that does not accept submissions. Only http and https actions can be submitted.",
	},

	// ============================================
	// Document Errors (E250-E299)
	// ============================================

	"E250": {
		Category: CategoryDocument,
		Message:  "Document has no renderable content",
		Detail:   "Everything in the document was whitespace or denylisted elements such as script and style.",
	},
	"E251": {
		Category: CategoryDocument,
		Message:  "Document nested too deeply",
		Detail:   "Part of the document exceeded the builder's maximum depth and was dropped.",
	},

	// ============================================
	// Reconcile Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryReconcile,
		Message:  "Output out of sync with document",
		Detail:   "A patch referenced a node the output does not have. The output will be rebuilt on the next navigation.",
	},
	"E301": {
		Category: CategoryReconcile,
		Message:  "Output adapter failed",
		Detail:   "The rendering target rejected an operation.",
	},
	"E302": {
		Category: CategoryReconcile,
		Message:  "Reconciler in failed state",
		Detail:   "An earlier pass failed part way; the output must be remounted before it can be diffed again.",
	},

	// ============================================
	// CLI Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was given arguments it cannot use.",
	},
	"E401": {
		Category: CategoryCLI,
		Message:  "Not a terminal",
		Detail:   "The interactive browser needs a terminal on stdin and stdout.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
