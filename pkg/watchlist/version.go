package watchlist

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/watchlist/pkg/watchlist.Version=...".
var Version = "v0.1.0-dev"
