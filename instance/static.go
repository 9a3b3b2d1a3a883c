package instance

// DefaultKnownEnvironments is the built-in table of environment alias
// groups for the well-known public and sovereign clouds. Environments in
// this table never trigger network discovery.
func DefaultKnownEnvironments() []Metadata {
	return []Metadata{
		{
			PreferredCache:   "login.windows.net",
			PreferredNetwork: "login.microsoftonline.com",
			Aliases: []string{
				"login.microsoftonline.com",
				"login.windows.net",
				"login.microsoft.com",
				"sts.windows.net",
			},
		},
		{
			PreferredCache:   "login.partner.microsoftonline.cn",
			PreferredNetwork: "login.partner.microsoftonline.cn",
			Aliases: []string{
				"login.partner.microsoftonline.cn",
				"login.chinacloudapi.cn",
			},
		},
		{
			PreferredCache:   "login.microsoftonline.us",
			PreferredNetwork: "login.microsoftonline.us",
			Aliases: []string{
				"login.microsoftonline.us",
				"login.usgovcloudapi.net",
			},
		},
	}
}
