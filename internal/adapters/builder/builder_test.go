package builder

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/melih/lighthouse/internal/core/domain"
)

func TestReferenceName(t *testing.T) {
	assert.Check(t, is.Equal(referenceName("main"), plumbing.ReferenceName("refs/heads/main")))
	assert.Check(t, is.Equal(referenceName("refs/tags/v1.2.0"), plumbing.ReferenceName("refs/tags/v1.2.0")))
}

func TestBuildImageRejectsInvalidName(t *testing.T) {
	a := &Adapter{}
	_, err := a.BuildImage(context.Background(), domain.BuildSource{RepoURL: "https://example.com/x.git"}, "Not/Valid")
	assert.Check(t, is.ErrorContains(err, `invalid image name "Not/Valid"`))
}

func TestCheckoutFailure(t *testing.T) {
	err := checkout(context.Background(), domain.BuildSource{RepoURL: t.TempDir() + "/missing"}, t.TempDir())
	assert.Check(t, is.ErrorContains(err, "failed to clone"))
}
