package domain

// BuildSource locates the sources of a service image.
type BuildSource struct {
	RepoURL string
	// Ref is a branch name or a full reference; empty means the remote HEAD.
	Ref        string
	Dockerfile string
}
