// Package policyopa evaluates the optional admin-authorization policy
// bundle. The API-key check happens first in the verification service; the
// policy only refines which administrative actions the key holder may take.
package policyopa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.attestd.authz.allow"

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
	bundleID   string
}

// AuthzInput is the document handed to the policy.
type AuthzInput struct {
	Action      string `json:"action"`
	Target      string `json:"target"`
	ActorIDHash string `json:"actor_id_hash"`
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleHash: bundleHash, bundleID: bundleID}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

// BundleID is the operator-assigned name of the loaded bundle, paired with
// BundleHash in startup logs and audit context.
func (e *Engine) BundleID() string {
	return e.bundleID
}

// Authorize evaluates the policy for an admin action. A missing or
// non-boolean result denies.
func (e *Engine) Authorize(ctx context.Context, action, target, actorIDHash string) (bool, error) {
	if e == nil {
		return false, errors.New("policy engine is nil")
	}
	input := AuthzInput{Action: action, Target: target, ActorIDHash: actorIDHash}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}

// ComputeBundleHashFromPath hashes the normative files of a policy bundle
// so audit entries can pin the policy that authorized an action.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return computeBundleHashFromFS(os.DirFS(bundlePath))
}

func computeBundleHashFromFS(fsys fs.FS) (string, error) {
	type entry struct {
		path string
		sum  string
	}
	var entries []entry
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isNormativeFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		entries = append(entries, entry{path: path, sum: hex.EncodeToString(sum[:])})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.path))
		h.Write([]byte{0})
		h.Write([]byte(e.sum))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isNormativeFile(path string) bool {
	return strings.HasSuffix(path, ".rego") || strings.HasSuffix(path, ".json")
}
