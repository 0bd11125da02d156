package anvil

import (
	"math"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/go-mclib/server/pkg/chunk"
	"github.com/go-mclib/server/pkg/world"
)

// Priority orders pending chunk loads; smaller values are dispatched first.
type Priority = uint64

// priorityInFlight marks a pending entry that has been handed to the worker.
const priorityInFlight Priority = math.MaxUint64

// queueCapacity bounds both worker queues.
const queueCapacity = 4096

// ParsedChunk is a chunk read from a region file together with its
// last-modified time.
type ParsedChunk struct {
	Chunk *chunk.Chunk
	// Timestamp is in seconds since the epoch.
	Timestamp uint32
}

// ChunkLoadStatus describes the outcome of one load attempt.
type ChunkLoadStatus int

const (
	// LoadSuccess means a chunk was parsed and inserted into the layer.
	LoadSuccess ChunkLoadStatus = iota
	// LoadEmpty means the level has no chunk at the position.
	LoadEmpty
	// LoadFailed means the read or parse failed; the error is on the event.
	LoadFailed
)

// ChunkLoadEvent is emitted after every load attempt.
type ChunkLoadEvent struct {
	Pos    chunk.Pos
	Status ChunkLoadStatus
	// Timestamp is the chunk's last-modified time when Status is
	// LoadSuccess.
	Timestamp uint32
	// Err is set when Status is LoadFailed.
	Err error
}

type workerResult struct {
	pos    chunk.Pos
	parsed *ParsedChunk
	err    error
}

// Level streams chunks from an Anvil world directory into a layer as client
// views move. One background worker reads and parses region files; the level
// itself is driven from the layer's tick goroutine and is not safe for
// concurrent use.
type Level struct {
	// IgnoredChunks are positions exempt from automatic unloading.
	IgnoredChunks map[chunk.Pos]struct{}

	// pending maps queued positions to their dispatch priority;
	// priorityInFlight marks positions already handed to the worker.
	pending map[chunk.Pos]Priority

	send      chan chunk.Pos
	recv      chan workerResult
	closeOnce sync.Once

	onLoad   []func(ChunkLoadEvent)
	onUnload []func(chunk.Pos)

	log *logrus.Logger
}

// NewLevel starts a worker for the world at the given root directory (the
// directory containing `region/`) and returns the level driving it.
func NewLevel(worldRoot string, blocks world.BlockRegistry, biomes world.BiomeRegistry, log *logrus.Logger) *Level {
	if log == nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
	}

	l := &Level{
		IgnoredChunks: make(map[chunk.Pos]struct{}),
		pending:       make(map[chunk.Pos]Priority),
		send:          make(chan chunk.Pos, queueCapacity),
		recv:          make(chan workerResult, queueCapacity),
		log:           log,
	}

	w := &chunkWorker{
		folder: newDimensionFolder(worldRoot),
		blocks: blocks,
		biomes: biomes,
		log:    log,
	}
	go w.run(l.send, l.recv)

	return l
}

// OnChunkLoad registers a callback for chunk load attempts.
func (l *Level) OnChunkLoad(fn func(ChunkLoadEvent)) {
	l.onLoad = append(l.onLoad, fn)
}

// OnChunkUnload registers a callback for chunk unloads.
func (l *Level) OnChunkUnload(fn func(chunk.Pos)) {
	l.onUnload = append(l.onUnload, fn)
}

// ForceChunkLoad queues a load for pos at the highest priority, bypassing
// IgnoredChunks. It has no effect on positions already in flight.
func (l *Level) ForceChunkLoad(pos chunk.Pos) {
	if pri, ok := l.pending[pos]; ok {
		if pri != priorityInFlight {
			l.pending[pos] = 0
		}
		return
	}
	l.pending[pos] = 0
}

// QueueView queues loads for every position of the view that is not already
// loaded in the layer, prioritized by distance to the viewer.
func (l *Level) QueueView(layer *world.Layer, view chunk.View) {
	view.ForEach(func(pos chunk.Pos) {
		l.queuePos(layer, view, pos)
	})
}

// QueueViewDiff queues loads for every position entering the view as it
// moves from old. Positions leaving the view are left alone; completed loads
// for them are discarded by the unload pass once nobody views them.
func (l *Level) QueueViewDiff(layer *world.Layer, view, old chunk.View) {
	view.Diff(old, func(pos chunk.Pos) {
		l.queuePos(layer, view, pos)
	})
}

func (l *Level) queuePos(layer *world.Layer, view chunk.View, pos chunk.Pos) {
	if _, ignored := l.IgnoredChunks[pos]; ignored {
		return
	}
	if layer.Chunk(pos) != nil {
		return
	}

	dist := view.Pos.DistanceSquared(pos)
	if pri, ok := l.pending[pos]; ok {
		// Re-queuing may only raise the urgency of a not-yet-dispatched load.
		if pri != priorityInFlight && dist < pri {
			l.pending[pos] = dist
		}
		return
	}
	l.pending[pos] = dist
}

// Tick drains finished loads into the layer and dispatches queued positions
// to the worker in priority order. Call once per layer tick.
func (l *Level) Tick(layer *world.Layer) {
	l.drainFinished(layer)
	l.dispatchPending()
}

func (l *Level) drainFinished(layer *world.Layer) {
	for {
		select {
		case res, ok := <-l.recv:
			if !ok {
				return
			}
			delete(l.pending, res.pos)

			ev := ChunkLoadEvent{Pos: res.pos}
			switch {
			case res.err != nil:
				ev.Status = LoadFailed
				ev.Err = res.err
			case res.parsed == nil:
				ev.Status = LoadEmpty
			default:
				layer.InsertChunk(res.pos, res.parsed.Chunk)
				ev.Status = LoadSuccess
				ev.Timestamp = res.parsed.Timestamp
			}

			for _, fn := range l.onLoad {
				fn(ev)
			}
		default:
			return
		}
	}
}

func (l *Level) dispatchPending() {
	type queued struct {
		pri Priority
		pos chunk.Pos
	}
	var toSend []queued
	for pos, pri := range l.pending {
		if pri != priorityInFlight {
			toSend = append(toSend, queued{pri: pri, pos: pos})
		}
	}
	sort.Slice(toSend, func(i, j int) bool { return toSend[i].pri < toSend[j].pri })

	for _, q := range toSend {
		select {
		case l.send <- q.pos:
			l.pending[q.pos] = priorityInFlight
		default:
			// Worker queue is full; the rest keep their priority for the
			// next tick.
			return
		}
	}
}

// RemoveUnviewed removes every chunk no client views, except ignored
// positions. Call on pre-update, after viewer counts settle.
func (l *Level) RemoveUnviewed(layer *world.Layer) {
	layer.RetainChunks(func(pos chunk.Pos, lc *world.LoadedChunk) bool {
		if lc.ViewerCount() > 0 {
			return true
		}
		if _, ignored := l.IgnoredChunks[pos]; ignored {
			return true
		}
		for _, fn := range l.onUnload {
			fn(pos)
		}
		return false
	})
}

// PendingCount returns the number of queued or in-flight loads.
func (l *Level) PendingCount() int { return len(l.pending) }

// Close stops the worker once it has read and parsed the positions already
// dispatched to it. Their results stay in the result queue; Close does not
// drain them.
func (l *Level) Close() {
	l.closeOnce.Do(func() {
		close(l.send)
	})
}

// chunkWorker reads chunks from region files on its own goroutine. The
// region handle cache is exclusively owned by the worker.
type chunkWorker struct {
	folder *dimensionFolder
	blocks world.BlockRegistry
	biomes world.BiomeRegistry
	log    *logrus.Logger
}

func (w *chunkWorker) run(in <-chan chunk.Pos, out chan<- workerResult) {
	defer close(out)
	defer w.folder.close()

	for pos := range in {
		parsed, err := w.load(pos)
		if err != nil {
			w.log.WithField("pos", pos).WithError(err).Debug("chunk load failed")
		}
		out <- workerResult{pos: pos, parsed: parsed, err: err}
	}
}

func (w *chunkWorker) load(pos chunk.Pos) (*ParsedChunk, error) {
	region, err := w.folder.region(pos.RegionPos())
	if err != nil {
		return nil, err
	}
	if region == nil {
		return nil, nil
	}

	data, err := region.Chunk(pos)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	c, err := ParseChunk(data, w.blocks, w.biomes)
	if err != nil {
		return nil, err
	}
	return &ParsedChunk{Chunk: c, Timestamp: region.Timestamp(pos)}, nil
}

// dimensionFolder lazily opens region files and keeps them open for the life
// of the worker. Regions that do not exist are remembered as absent.
type dimensionFolder struct {
	root    string
	regions map[chunk.RegionPos]*Region
}

func newDimensionFolder(root string) *dimensionFolder {
	return &dimensionFolder{
		root:    root,
		regions: make(map[chunk.RegionPos]*Region),
	}
}

func (d *dimensionFolder) region(pos chunk.RegionPos) (*Region, error) {
	if r, ok := d.regions[pos]; ok {
		return r, nil
	}

	r, err := OpenRegion(RegionPath(d.root, pos))
	if os.IsNotExist(err) {
		d.regions[pos] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.regions[pos] = r
	return r, nil
}

func (d *dimensionFolder) close() {
	for _, r := range d.regions {
		if r != nil {
			r.Close()
		}
	}
}
