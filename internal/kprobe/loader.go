package kprobe

import (
	"context"
	"fmt"
	"log"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// ProgramSpec describes a native eBPF program to load and attach as a
// kprobe, the kprobe.Attacher equivalent of melisai's ebpf.ProgramSpec.
type ProgramSpec struct {
	Name       string
	ObjectFile string // path to the compiled .o
	AttachTo   string // kernel function name (blk_mq_start_request, blk_mq_free_request)
	Section    string // section name inside the .o
}

// BlockLayerPrograms are the two block-layer kprobes quiesce can optionally
// attach, letting it observe a device's hardware queue depth directly instead
// of only inferring contention from the issue/completion calls callers
// report through UpdateOnIssue/EndIO.
var BlockLayerPrograms = []ProgramSpec{
	{Name: "block_rq_issue", ObjectFile: "internal/kprobe/bpf/block_rq_issue.o", AttachTo: "blk_mq_start_request", Section: "blk_mq_start_request"},
	{Name: "block_rq_complete", ObjectFile: "internal/kprobe/bpf/block_rq_complete.o", AttachTo: "blk_mq_free_request", Section: "blk_mq_free_request"},
}

// LoadedProgram is a running, attached kprobe program.
type LoadedProgram struct {
	Spec       *ProgramSpec
	Collection *ebpf.Collection
	Link       link.Link
}

// Close detaches the kprobe and releases the collection.
func (p *LoadedProgram) Close() error {
	if p.Link != nil {
		p.Link.Close()
	}
	if p.Collection != nil {
		p.Collection.Close()
	}
	return nil
}

// LoadError reports why a kprobe attach attempt failed.
type LoadError struct {
	Program string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("kprobe program %q: %v", e.Program, e.Err)
}

// Attacher loads and attaches the block-layer kprobes, falling back to a
// no-op when BTF/CO-RE is unavailable, matching melisai's ebpf.Loader
// CanLoad/TryLoad fallback shape.
type Attacher struct {
	btf     *BTFInfo
	verbose bool
}

// NewAttacher returns an Attacher that has already probed BTF availability.
func NewAttacher(verbose bool) *Attacher {
	return &Attacher{btf: DetectBTF(), verbose: verbose}
}

// CanAttach reports whether the host supports native eBPF kprobe loading.
func (a *Attacher) CanAttach() bool {
	return a.btf.Available && a.btf.CORESupport
}

// TryAttach attempts to load and attach spec. Callers should treat a
// returned *LoadError as informational — quiesce's window/period algorithm
// works without kernel-level confirmation, this only sharpens the
// "hardware I/O scheduling" disable heuristic when it's available.
func (a *Attacher) TryAttach(ctx context.Context, spec *ProgramSpec) (*LoadedProgram, error) {
	if !a.CanAttach() {
		return nil, &LoadError{Program: spec.Name, Err: fmt.Errorf("BTF/CO-RE not available (kernel %s)", a.btf.KernelVersion)}
	}

	collSpec, err := ebpf.LoadCollectionSpec(spec.ObjectFile)
	if err != nil {
		return nil, &LoadError{Program: spec.Name, Err: fmt.Errorf("load spec: %w", err)}
	}
	coll, err := ebpf.NewCollection(collSpec)
	if err != nil {
		return nil, &LoadError{Program: spec.Name, Err: fmt.Errorf("load collection: %w", err)}
	}

	prog := coll.Programs[spec.Section]
	if prog == nil {
		for _, p := range coll.Programs {
			prog = p
			break
		}
	}
	if prog == nil {
		coll.Close()
		return nil, &LoadError{Program: spec.Name, Err: fmt.Errorf("program not found in collection")}
	}

	kp, err := link.Kprobe(spec.AttachTo, prog, nil)
	if err != nil {
		coll.Close()
		return nil, &LoadError{Program: spec.Name, Err: fmt.Errorf("attach kprobe %s: %w", spec.AttachTo, err)}
	}

	if a.verbose {
		log.Printf("[kprobe] attached %s to %s", spec.Name, spec.AttachTo)
	}
	return &LoadedProgram{Spec: spec, Collection: coll, Link: kp}, nil
}

// DisableFunc is the callback shape for disabling throttling on a device
// from a probe observation. Nothing in quiesce invokes one: an attached
// probe does not call it.
type DisableFunc func(deviceIndex int, isFusion bool)

// AttachAll attaches every program in BlockLayerPrograms, logging and
// continuing past any that fail (graceful degradation, matching melisai's
// ebpf.Loader fallback-to-procfs behavior). It returns the programs that
// attached successfully; callers are responsible for closing them.
func (a *Attacher) AttachAll(ctx context.Context) []*LoadedProgram {
	var loaded []*LoadedProgram
	for i := range BlockLayerPrograms {
		spec := BlockLayerPrograms[i]
		p, err := a.TryAttach(ctx, &spec)
		if err != nil {
			if a.verbose {
				log.Printf("[kprobe] %v (falling back to software detection)", err)
			}
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}
