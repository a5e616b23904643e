package resources

import (
	"embed"
)

//go:embed assets
var assets embed.FS

// AddBuiltin registers the built-in public pages: the index page served at
// the root and the stylesheet it references. Configured resources can shadow
// neither, since file-like entries require an exact path match and these
// paths are registered first.
func (r *Registry) AddBuiltin() error {
	index, err := assets.ReadFile("assets/index.html")
	if err != nil {
		return err
	}
	style, err := assets.ReadFile("assets/style.css")
	if err != nil {
		return err
	}

	for _, res := range []Resource{
		{Type: TypeStaticBlob, RemotePath: "/", ContentType: "text/html", Scope: ScopePublic, Data: index},
		{Type: TypeStaticBlob, RemotePath: "/index.html", ContentType: "text/html", Scope: ScopePublic, Data: index},
		{Type: TypeStaticBlob, RemotePath: "/style.css", ContentType: "text/css", Scope: ScopePublic, Data: style},
	} {
		if _, err := r.Add(res); err != nil {
			return err
		}
	}
	return nil
}
