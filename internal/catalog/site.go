package catalog

// Site describes an execution site.
type Site struct {
	Handle string
	// GridLaunch is the path of the kickstart launcher on the site, if any.
	GridLaunch string
	Profiles   Profiles
}

// Sites is a site catalog keyed by handle.
type Sites map[string]*Site

// Lookup returns the site registered under handle.
func (s Sites) Lookup(handle string) (*Site, bool) {
	site, ok := s[handle]
	return site, ok
}
