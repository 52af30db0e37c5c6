package domain

type ctxKey string

const (
	ActorIdCtxKey   ctxKey = "nn-actorId"
	ActorRoleCtxKey ctxKey = "nn-actorRole"
)

const (
	// DefaultDiscoveryRadiusMeters is the radius used to find volunteers
	// to notify when a request is created. It is independent of any radius
	// a client later uses for browsing.
	DefaultDiscoveryRadiusMeters = 5000.0

	// DefaultBrowseRadiusMeters is the browse radius applied when a query
	// omits one.
	DefaultBrowseRadiusMeters = 5000.0
)
