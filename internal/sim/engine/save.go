package engine

import (
	"github.com/google/uuid"

	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/tuning"
	"xcombat.dev/internal/sim/vehicle"
)

// SaveRequest is a finished vehicle save. Backup asks the writer to also
// keep a copy in the backup directory.
type SaveRequest struct {
	Save   snapshot.SaveV1
	Backup bool
}

// saveState spreads serializing every vehicle over several ticks so a large
// fleet never stalls one tick.
type saveState struct {
	saving  bool
	timer   int
	period  int
	saves   int
	backups int

	tick    uint64
	pending []vehicle.VehicleID
	perTick int
	out     []snapshot.VehicleV1
}

func (s *saveState) reset(t tuning.Tuning) {
	s.period = t.SavePeriodTicks
	s.backups = t.SaveBackupPeriod
	s.timer = s.period
	s.abort()
}

func (s *saveState) abort() {
	s.saving = false
	s.pending = nil
	s.out = nil
	s.perTick = 0
}

func (e *Engine) stepSave(tick uint64) {
	s := &e.save
	if s.period <= 0 || e.vehicles == nil || e.cfg.SaveSink == nil {
		return
	}
	if !s.saving {
		s.timer--
		if s.timer > 0 {
			return
		}
		s.timer = s.period
		s.saving = true
		s.tick = tick
		s.pending = e.vehicles.Vehicles.IDs()
		s.out = make([]snapshot.VehicleV1, 0, len(s.pending))
		s.perTick = max(e.tun.SaveMinPerTick, len(s.pending)/max(1, e.tun.SavePipelineTicks)+1)
	}

	n := min(s.perTick, len(s.pending))
	for _, id := range s.pending[:n] {
		// Vehicles destroyed since the save began are skipped.
		if v, ok := e.vehicles.Vehicles.Get(id); ok {
			s.out = append(s.out, e.vehicles.Persist(v))
		}
	}
	s.pending = s.pending[n:]
	if len(s.pending) > 0 {
		return
	}

	// Only delivered saves count toward the backup cadence.
	req := SaveRequest{
		Save:   e.saveV1(s.tick, s.out),
		Backup: s.backups > 0 && (s.saves+1)%s.backups == 0,
	}
	s.abort()
	select {
	case e.cfg.SaveSink <- req:
		s.saves++
	default:
		e.logger.Printf("WARN engine: save sink backed up, dropping save of tick %d (backup=%v)", req.Save.Header.Tick, req.Backup)
	}
}

func (e *Engine) saveV1(tick uint64, vehicles []snapshot.VehicleV1) snapshot.SaveV1 {
	return snapshot.SaveV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			WorldID:  e.cfg.WorldID,
			Tick:     tick,
			SaveID:   uuid.NewString(),
			Vehicles: len(vehicles),
		},
		Vehicles: vehicles,
	}
}

// SaveAll serializes every vehicle at once. Call it from the tick goroutine
// or after Run has returned.
func (e *Engine) SaveAll() snapshot.SaveV1 {
	var out []snapshot.VehicleV1
	if e.vehicles != nil {
		e.vehicles.Vehicles.Each(func(v *vehicle.Vehicle) {
			out = append(out, e.vehicles.Persist(v))
		})
	}
	return e.saveV1(e.tick.Load(), out)
}
