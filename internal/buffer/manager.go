package buffer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/novadb/novasql/internal/config"
)

const logDebugPrefix = "[buffer] "

// maxEvictAttempts bounds how many version-validated candidates acquireSlot
// tries to evict before a class gives up and reports OutOfMemory (spec.md
// 4.6). Stale entries that TryEvict discards on its own do not count
// against this bound.
const maxEvictAttempts = 64

// Manager is the buffer manager (C7): allocation, pin/unpin, read-through,
// write-back, orchestrating the SSD region (C2), volatile regions (C3),
// page table (C5) and eviction queues (C6) across the DRAM and optional
// NUMA tiers.
//
// Grounded on the teacher's GlobalPool.GetPage/Unpin/FlushAll, generalized
// from one FileSet to PageID-size-class addressing and from one tier to
// DRAM+NUMA.
type Manager struct {
	cfg *config.BufferConfig
	ssd *SSDRegion

	dram [maxSizeClasses]*VolatileRegion
	numa [maxSizeClasses]*VolatileRegion // nil entries if EnableNuma is false

	table  *PageTable
	evict  [2][maxSizeClasses]*EvictQueue // indexed by Tier, then size class
	nextID [maxSizeClasses]atomic.Uint64

	misses atomic.Int64 // diagnostic only: read-through entries, see missCount

	debug bool

	purgeStop chan struct{}
	purgeDone chan struct{}
}

// missCount returns the number of GetPage calls so far that missed the page
// table and entered the read-through path (counted on entry, whether or not
// the read then succeeds). Diagnostic only, used by the S6 skew-workload sweep to
// compute hit rate; not part of the buffer manager's correctness contract.
func (m *Manager) missCount() int64 { return m.misses.Load() }

// NewManager constructs a buffer manager rooted at ssdDir, sizing the DRAM
// (and, if enabled, NUMA) volatile regions from cfg.
func NewManager(cfg *config.BufferConfig, ssdDir string) (*Manager, error) {
	ssd, err := NewSSDRegion(ssdDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:       cfg,
		ssd:       ssd,
		table:     NewPageTable(),
		debug:     cfg.Debug,
		purgeStop: make(chan struct{}),
		purgeDone: make(chan struct{}),
	}
	for k := 0; k < maxSizeClasses; k++ {
		dramSlots := slotsForClass(cfg.DramBufferPoolSize, k)
		m.dram[k] = NewVolatileRegion(k, dramSlots, cfg.EnableMprotect)
		m.evict[TierDram][k] = NewEvictQueue(dramSlots)
		if cfg.EnableNuma && cfg.NumaBufferPoolSize > 0 {
			numaSlots := slotsForClass(cfg.NumaBufferPoolSize, k)
			m.numa[k] = NewVolatileRegion(k, numaSlots, cfg.EnableMprotect)
			m.evict[TierNuma][k] = NewEvictQueue(numaSlots)
		}
	}
	go m.runPurgeLoop()
	return m, nil
}

// runPurgeLoop is the idle purge sweep spec.md 4.6 requires: every
// DefaultPurgeInterval, it drops every eviction-queue entry across all
// tiers/classes whose stamped version no longer matches its frame's live
// version, bounding queue length even when eviction pressure is low. Started
// by NewManager, stopped by Close.
func (m *Manager) runPurgeLoop() {
	defer close(m.purgeDone)
	ticker := time.NewTicker(DefaultPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.purgeStop:
			return
		case <-ticker.C:
			m.purgeAll()
		}
	}
}

// purgeAll runs one sweep of EvictQueue.Purge over every tier/class.
func (m *Manager) purgeAll() {
	for tier := TierDram; tier <= TierNuma; tier++ {
		for class := 0; class < maxSizeClasses; class++ {
			q := m.evict[tier][class]
			if q == nil {
				continue
			}
			q.Purge(func(id PageID) (int64, bool) {
				f, found := m.table.Find(id)
				if !found || f.Tier != tier {
					return 0, false
				}
				return f.Version(), true
			})
		}
	}
}

// slotsForClass divides a tier's byte budget evenly across size classes;
// each class gets at least one slot so every class stays usable even with
// a small configured pool (useful in tests).
func slotsForClass(poolBytes int64, class int) int {
	perClass := poolBytes / maxSizeClasses
	slots := int(perClass / int64(SizeOf(class)))
	if slots < 1 {
		slots = 1
	}
	return slots
}

func (m *Manager) fail(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if m.debug {
		panic(err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidUsage, err)
}

func (m *Manager) region(tier Tier, class int) *VolatileRegion {
	if tier == TierNuma {
		return m.numa[class]
	}
	return m.dram[class]
}

// chooseTier decides where a freshly loaded or allocated page should land,
// per the migration_policy resolution in SPEC_FULL.md 9.3.
func (m *Manager) chooseTier(class int) (Tier, error) {
	switch m.cfg.MigrationPolicy {
	case config.MigrationNumaOnly:
		if m.numa[class] == nil {
			return 0, fmt.Errorf("%w: migration_policy=numa_only but NUMA tier disabled", ErrOutOfMemory)
		}
		return TierNuma, nil
	case config.MigrationDramOnly:
		return TierDram, nil
	default: // Lazy, Eager
		if m.numa[class] != nil {
			return TierNuma, nil
		}
		return TierDram, nil
	}
}

// acquireSlot obtains a free slot in tier/class, evicting a candidate of
// the same tier and class if necessary.
func (m *Manager) acquireSlot(tier Tier, class int) (slot int, data []byte, err error) {
	region := m.region(tier, class)
	if region == nil {
		return 0, nil, fmt.Errorf("%w: tier unavailable for class %d", ErrOutOfMemory, class)
	}
	if slot, data, ok := region.Acquire(); ok {
		return slot, data, nil
	}

	queue := m.evict[tier][class]
	if queue == nil {
		return 0, nil, fmt.Errorf("%w: no eviction queue for tier/class %d", ErrOutOfMemory, class)
	}
	for attempt := 0; attempt < maxEvictAttempts; attempt++ {
		victimID, ok := queue.TryEvict(func(id PageID) (int64, bool) {
			f, found := m.table.Find(id)
			if !found || f.Tier != tier {
				return 0, false
			}
			return f.Version(), true
		})
		if !ok {
			break
		}
		if m.evictOne(victimID, tier, class) {
			if slot, data, ok := region.Acquire(); ok {
				return slot, data, nil
			}
		}
	}
	return 0, nil, fmt.Errorf("%w: no evictable frame for class %d", ErrOutOfMemory, class)
}

// evictOne attempts to complete eviction of victimID, whose presence in the
// queue was already version-validated by the caller. It returns false if a
// concurrent pin raced ahead and the victim must be abandoned (treated as
// stale, per spec.md 4.6).
func (m *Manager) evictOne(victimID PageID, tier Tier, class int) bool {
	f, found := m.table.Find(victimID)
	if !found {
		return false
	}

	// f enters here MARKED_FOR_EVICTION (Unpin already made that transition
	// when the pin count hit zero). The state machine has no direct
	// MARKED_FOR_EVICTION -> LOCKED_EXCLUSIVE edge, so write-back borrows the
	// same MARKED_FOR_EVICTION -> RESIDENT edge a re-pin uses (spec.md 4.4),
	// does its RESIDENT -> LOCKED_EXCLUSIVE -> RESIDENT round trip, then
	// re-marks before the final -> EVICTED transition.
	if f.Dirty() {
		if err := f.TransitionTo(MarkedForEviction, Resident); err != nil {
			return false
		}
		if err := f.TransitionTo(Resident, LockedExclusive); err != nil {
			return false
		}
		if err := m.ssd.WritePage(victimID, f.Data); err != nil {
			slog.Error(logDebugPrefix+"write-back failed during eviction", "page_id", victimID, "err", err)
			_ = f.TransitionTo(LockedExclusive, Resident)
			return false
		}
		f.SetDirty(false)
		if err := f.TransitionTo(LockedExclusive, Resident); err != nil {
			return false
		}
		if err := f.TransitionTo(Resident, MarkedForEviction); err != nil {
			return false
		}
	}

	if f.PinCount() != 0 {
		// Re-pinned concurrently between dequeue and here; put it back.
		_ = f.TransitionTo(MarkedForEviction, Resident)
		return false
	}

	if err := f.TransitionTo(MarkedForEviction, Evicted); err != nil {
		return false
	}

	m.region(tier, class).Release(f.Slot)
	m.table.Erase(victimID)
	return true
}

// GetPage pins and returns page id's bytes, triggering read-through on
// miss. The caller must balance this with Unpin.
func (m *Manager) GetPage(id PageID) ([]byte, error) {
	if !id.Valid() {
		return nil, m.fail("buffer: GetPage of invalid PageID")
	}

	if f, ok := m.table.Find(id); ok {
		return m.pinResident(f)
	}

	return m.readThrough(id)
}

func (m *Manager) pinResident(f *Frame) ([]byte, error) {
	for {
		switch f.State() {
		case Resident:
			f.Pin()
			m.onHit(f)
			return f.Data, nil
		case MarkedForEviction:
			if err := f.TransitionTo(MarkedForEviction, Resident); err == nil {
				f.Pin()
				m.onHit(f)
				return f.Data, nil
			}
			// lost the race; re-check state
		case Loading:
			time.Sleep(time.Microsecond)
		case LockedExclusive:
			time.Sleep(time.Microsecond)
		case Evicted:
			return nil, ErrStaleTransition
		}
	}
}

// onHit applies the migration policy on a resident-page access.
func (m *Manager) onHit(f *Frame) {
	if f.Tier != TierNuma {
		return
	}
	switch m.cfg.MigrationPolicy {
	case config.MigrationEager:
		m.promoteToDram(f)
	case config.MigrationLazy:
		if f.RecordNumaAccess() >= 2 {
			m.promoteToDram(f)
		}
	}
}

// promoteToDram copies a NUMA-resident frame's bytes into a DRAM slot.
// Failure to find a DRAM slot is not surfaced as an error: migration is an
// optimization, not a correctness requirement, so the page simply stays in
// the NUMA tier.
func (m *Manager) promoteToDram(f *Frame) {
	class := f.PageID.SizeClass()
	slot, data, err := m.acquireSlot(TierDram, class)
	if err != nil {
		return
	}
	copy(data, f.Data)
	oldTier, oldSlot := f.Tier, f.Slot
	f.Tier = TierDram
	f.Slot = slot
	f.Data = data
	f.ResetNumaAccess()
	m.region(oldTier, class).Release(oldSlot)
}

// readThrough implements the miss path of spec.md 4.7: LOADING -> acquire
// slot -> ssd read -> RESIDENT -> page table insert. Concurrent misses on
// the same id cooperate through the shared Frame the losing callers
// observe via InsertIfAbsent.
func (m *Manager) readThrough(id PageID) ([]byte, error) {
	m.misses.Add(1)
	fresh := NewFrame(id)
	f, inserted := m.table.InsertIfAbsent(id, fresh)
	if !inserted {
		return m.pinResident(f)
	}

	if err := f.TransitionTo(Evicted, Loading); err != nil {
		return nil, err
	}

	class := id.SizeClass()
	tier, err := m.chooseTier(class)
	if err != nil {
		m.table.Erase(id)
		return nil, err
	}
	slot, data, err := m.acquireSlot(tier, class)
	if err != nil {
		m.table.Erase(id)
		return nil, err
	}
	f.Tier = tier
	f.Slot = slot
	f.Data = data

	if err := m.ssd.ReadPage(id, data); err != nil {
		m.region(tier, class).Release(slot)
		m.table.Erase(id)
		return nil, err
	}

	if err := f.TransitionTo(Loading, Resident); err != nil {
		return nil, err
	}
	f.Pin()
	return f.Data, nil
}

// Unpin decrements id's pin count. dirty=true records that bytes were
// modified while pinned. When the count reaches zero the frame is marked
// and enqueued as an eviction candidate.
func (m *Manager) Unpin(id PageID, dirty bool) error {
	f, ok := m.table.Find(id)
	if !ok {
		return m.fail("buffer: Unpin of page not in table: %v", id)
	}
	if f.PinCount() <= 0 {
		return m.fail("buffer: Unpin of unpinned page: %v", id)
	}
	if dirty {
		f.SetDirty(true)
	}
	if zero := f.Unpin(); zero {
		if err := f.TransitionTo(Resident, MarkedForEviction); err == nil {
			class := id.SizeClass()
			m.evict[f.Tier][class].Enqueue(id, f.Version())
		}
	}
	return nil
}

// Pin is an explicit-lifetime alias of GetPage, matching spec.md 4.7's
// separate pin/get_page naming.
func (m *Manager) Pin(id PageID) ([]byte, error) { return m.GetPage(id) }

// Allocate reserves a byte range of the requested size, rounding up to the
// smallest fitting page size class. Unlike a production allocator this
// does not pack multiple small allocations within one page: every Allocate
// gets a dedicated page.
// The returned pointer is pinned; the caller must Unpin (or Deallocate) it.
func (m *Manager) Allocate(size int, align int) (BufferManagedPtr[byte], error) {
	if align > baseSize {
		return BufferManagedPtr[byte]{}, m.fail("buffer: alignment %d exceeds page size", align)
	}
	class, ok := FindFittingPageSizeType(size)
	if !ok {
		return BufferManagedPtr[byte]{}, fmt.Errorf("%w: requested size %d exceeds largest page class", ErrOutOfMemory, size)
	}

	id := PageID(0)
	for {
		index := m.nextID[class].Add(1) - 1
		id = NewPageID(class, index)
		if _, exists := m.table.Find(id); !exists {
			break
		}
	}

	f := NewFrame(id)
	actual, inserted := m.table.InsertIfAbsent(id, f)
	if !inserted {
		return BufferManagedPtr[byte]{}, m.fail("buffer: PageID collision on allocate: %v", id)
	}
	f = actual

	tier, err := m.chooseTier(class)
	if err != nil {
		m.table.Erase(id)
		return BufferManagedPtr[byte]{}, err
	}
	slot, data, err := m.acquireSlot(tier, class)
	if err != nil {
		m.table.Erase(id)
		return BufferManagedPtr[byte]{}, err
	}
	f.Tier = tier
	f.Slot = slot
	f.Data = data
	for i := range data {
		data[i] = 0
	}

	f.MarkResidentFresh()
	f.Pin()

	return BufferManagedPtr[byte]{PageID: id, ByteOffset: 0}, nil
}

// Deallocate returns a page to the allocator outright, bypassing the
// eviction queue. The caller must have dropped all references; Deallocate
// forces the pin count to zero itself before evicting the page, and a
// dirty page's bytes are discarded without write-back.
func (m *Manager) Deallocate(ptr BufferManagedPtr[byte], size, align int) error {
	id := ptr.PageID
	f, ok := m.table.Find(id)
	if !ok {
		return nil
	}
	class := id.SizeClass()
	m.evict[f.Tier][class].Remove(id)

	for f.PinCount() > 0 {
		f.Unpin()
	}

	state := f.State()
	if state == Resident || state == MarkedForEviction {
		if state == Resident {
			_ = f.TransitionTo(Resident, MarkedForEviction)
		}
		if err := f.TransitionTo(MarkedForEviction, Evicted); err != nil {
			return err
		}
		m.region(f.Tier, class).Release(f.Slot)
	}
	m.table.Erase(id)
	return nil
}

// Unswizzle resolves a raw address back to its {PageID, byte_offset} pair
// by scanning the tier regions for the frame whose Data slice contains addr,
// per spec.md 4.7 ("resolving a raw address that lies within some volatile
// region"). addr need not point at a frame's first byte -- the offset is
// computed from where addr actually falls within the frame's byte range, the
// same way Deref hands back a pointer into the interior of a page. Returns
// ErrPageNotFound if addr does not lie within any tracked volatile region.
func (m *Manager) Unswizzle(addr []byte) (PageID, int, error) {
	if len(addr) == 0 {
		return InvalidPageID, 0, ErrPageNotFound
	}
	addrStart := uintptr(unsafe.Pointer(&addr[0]))

	var found PageID
	var offset int
	ok := false
	m.table.m.Range(func(key, value any) bool {
		id := key.(PageID)
		fr := value.(*Frame)
		if len(fr.Data) == 0 {
			return true
		}
		base := uintptr(unsafe.Pointer(&fr.Data[0]))
		end := base + uintptr(len(fr.Data))
		if addrStart >= base && addrStart < end {
			found, offset, ok = id, int(addrStart-base), true
			return false
		}
		return true
	})
	if !ok {
		return InvalidPageID, 0, ErrPageNotFound
	}
	return found, offset, nil
}

// Close stops the idle purge sweep and releases the SSD region's open file
// handles.
func (m *Manager) Close() error {
	close(m.purgeStop)
	<-m.purgeDone
	return m.ssd.Close()
}
