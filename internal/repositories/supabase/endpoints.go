package supabase

const (
	authBasePath = "/auth/v1"
	restBasePath = "/rest/v1"

	profilesTable = "profiles"
)

const (
	grantTypePassword     = "password"
	grantTypeRefreshToken = "refresh_token"
)
