package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Labels put on every container lighthouse starts. The collector only sees
// containers carrying all of them.
const (
	LabelProject    = "lighthouse.project"
	LabelService    = "lighthouse.service"
	LabelConfigHash = "lighthouse.config-hash"
)

// StartRequest asks the engine to start one replica of a service.
type StartRequest struct {
	Project           string
	ServiceName       string
	ServiceConfigHash string
	Template          ContainerTemplate
}

// Labels returns the labels identifying the replica.
func (r StartRequest) Labels() map[string]string {
	return map[string]string{
		LabelProject:    r.Project,
		LabelService:    r.ServiceName,
		LabelConfigHash: r.ServiceConfigHash,
	}
}

// EngineInfo describes the engine a pass runs against.
type EngineInfo struct {
	Version    string `json:"Version"`
	APIVersion string `json:"ApiVersion"`
	Os         string `json:"Os"`
	Arch       string `json:"Arch"`
}

// NewContainerName returns a unique, human-readable container name for r.
func NewContainerName(r StartRequest) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", r.Project, r.ServiceName, suffix)
}
