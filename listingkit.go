// Package listingkit defines the JSON template document used for product
// pages, seller pages and adverts: a declarative TemplateNode tree plus the
// content and images it is rendered with.
//
// Documents usually come from a generative model, so parsing is forgiving:
// Fix synthesizes missing top-level parts, Validate collects every problem
// with its path, and ParseDocument/ParseGenerated combine the two with the
// appropriate strictness. The tree is interpreted by internal/render.
package listingkit

// Version is the listingkit release, set at build time.
var Version = "dev"

// Template kinds recorded in metadata.template.
const (
	TemplateProduct = "product"
	TemplateSeller  = "seller"
	TemplateAdvert  = "advert"
	TemplateCustom  = "custom"
)
