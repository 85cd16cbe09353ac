// Package asset loads a glTF character and normalizes it into a canonical
// bounding volume resting on the ground plane.
package asset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/normanking/guardavatar/internal/animation"
)

var (
	ErrNoMeshes         = errors.New("asset has no mesh primitives")
	ErrNoScene          = errors.New("asset has no scene nodes")
	ErrDegenerateBounds = errors.New("asset bounds are degenerate")
)

// Part is one renderable mesh instance in the scene graph.
type Part struct {
	Name       string `json:"name"`
	Node       int    `json:"node"`
	Mesh       int    `json:"mesh"`
	Primitives int    `json:"primitives"`
	CastShadow bool   `json:"castShadow"`
}

// CharacterAsset is a normalized character: its parts, clips and the root
// transform that frames it. Geometry is never modified after load; only the
// root may be adjusted.
type CharacterAsset struct {
	Source string `json:"source"`

	Root  Transform        `json:"root"`
	Parts []Part           `json:"parts"`
	Clips []animation.Clip `json:"clips"`

	// Bounds is the raw world-space box before normalization.
	Bounds Bounds `json:"bounds"`
}

// NormalizedBounds returns the asset's box after the root transform.
func (a *CharacterAsset) NormalizedBounds() Bounds {
	return a.Root.ApplyBounds(a.Bounds)
}

// SetRoot replaces the root transform, e.g. to adjust framing.
func (a *CharacterAsset) SetRoot(t Transform) {
	a.Root = t
}

// Load fetches and normalizes the asset at source, which is either a local
// .gltf/.glb path or an http(s) URL serving a binary glTF.
func Load(ctx context.Context, source string, opts Options) (*CharacterAsset, error) {
	doc, err := open(ctx, source)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, source, opts)
}

func open(ctx context.Context, source string) (*gltf.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isRemote(source) {
		doc, err := gltf.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open gltf %s: %w", source, err)
		}
		return doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: unexpected status %d", resp.StatusCode)
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return doc, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// FromDocument builds a normalized asset from a decoded document.
func FromDocument(doc *gltf.Document, source string, opts Options) (*CharacterAsset, error) {
	roots := sceneRoots(doc)
	if len(roots) == 0 {
		return nil, ErrNoScene
	}

	a := &CharacterAsset{
		Source: source,
		Bounds: EmptyBounds(),
		Clips:  extractClips(doc),
	}

	w := walker{doc: doc, asset: a, opts: opts, visited: make(map[int]bool)}
	for _, n := range roots {
		w.visit(n, mgl32.Ident4())
	}

	if len(a.Parts) == 0 {
		return nil, ErrNoMeshes
	}

	root, err := Normalize(a.Bounds, opts)
	if err != nil {
		return nil, err
	}
	a.Root = root
	return a, nil
}

// sceneRoots returns the root nodes of the default scene, or of the first
// scene, or every parentless node when the file declares no scenes.
func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}

	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

type walker struct {
	doc     *gltf.Document
	asset   *CharacterAsset
	opts    Options
	visited map[int]bool
}

func (w *walker) visit(idx int, parent mgl32.Mat4) {
	if idx < 0 || idx >= len(w.doc.Nodes) || w.visited[idx] {
		return
	}
	w.visited[idx] = true

	node := w.doc.Nodes[idx]
	world := parent.Mul4(localMatrix(node))

	if node.Mesh != nil && *node.Mesh < len(w.doc.Meshes) {
		w.addMesh(idx, *node.Mesh, world)
	}
	for _, c := range node.Children {
		w.visit(c, world)
	}
}

func (w *walker) addMesh(nodeIdx, meshIdx int, world mgl32.Mat4) {
	mesh := w.doc.Meshes[meshIdx]
	prims := 0
	for _, prim := range mesh.Primitives {
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok || posIdx >= len(w.doc.Accessors) {
			continue
		}
		local, ok := accessorBounds(w.doc.Accessors[posIdx])
		if !ok {
			continue
		}
		w.asset.Bounds.Union(local.Transform(world))
		prims++
	}
	if prims == 0 {
		return
	}

	name := w.doc.Nodes[nodeIdx].Name
	if name == "" {
		name = mesh.Name
	}
	if name == "" {
		name = fmt.Sprintf("part_%d", len(w.asset.Parts))
	}
	w.asset.Parts = append(w.asset.Parts, Part{
		Name:       name,
		Node:       nodeIdx,
		Mesh:       meshIdx,
		Primitives: prims,
		CastShadow: w.opts.CastShadows,
	})
}

// accessorBounds reads a POSITION accessor's min/max, which glTF requires.
func accessorBounds(acc *gltf.Accessor) (Bounds, bool) {
	if acc == nil || len(acc.Min) < 3 || len(acc.Max) < 3 {
		return Bounds{}, false
	}
	return Bounds{
		Min: mgl32.Vec3{float32(acc.Min[0]), float32(acc.Min[1]), float32(acc.Min[2])},
		Max: mgl32.Vec3{float32(acc.Max[0]), float32(acc.Max[1]), float32(acc.Max[2])},
	}, true
}

func localMatrix(n *gltf.Node) mgl32.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out mgl32.Mat4
		for i, v := range m {
			out[i] = float32(v)
		}
		return out
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()

	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// extractClips turns glTF animations into clips. A clip lasts until the
// latest keyframe of any of its samplers. glTF requires sampler input
// accessors to declare max.
func extractClips(doc *gltf.Document) []animation.Clip {
	clips := make([]animation.Clip, 0, len(doc.Animations))
	for i, anim := range doc.Animations {
		var end float64
		for _, s := range anim.Samplers {
			if s.Input >= len(doc.Accessors) {
				continue
			}
			acc := doc.Accessors[s.Input]
			if len(acc.Max) > 0 && acc.Max[0] > end {
				end = acc.Max[0]
			}
		}
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("clip_%d", i)
		}
		clips = append(clips, animation.Clip{
			Name:     name,
			Duration: time.Duration(end * float64(time.Second)),
		})
	}
	return clips
}
