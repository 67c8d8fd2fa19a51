package main

import (
	"log"
	"path/filepath"

	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/engine"
)

// saveRecorder is the part of the index the save writer feeds.
type saveRecorder interface {
	RecordSave(path string, save snapshot.SaveV1, backup bool)
}

// uploader copies written files off-host.
type uploader interface {
	Enqueue(path string)
}

type saveWriter struct {
	dir        string
	keepSaves  int
	keepBackup int
	index      saveRecorder
	mirror     uploader
	log        *log.Logger
}

// run writes every request until ch is closed.
func (w *saveWriter) run(ch <-chan engine.SaveRequest) {
	for req := range ch {
		w.write(req)
	}
}

func (w *saveWriter) write(req engine.SaveRequest) {
	path := filepath.Join(w.dir, snapshot.FileName(req.Save.Header.Tick))
	if err := snapshot.WriteSave(path, req.Save); err != nil {
		w.log.Printf("SEVERE save write tick %d: %v", req.Save.Header.Tick, err)
		return
	}
	if w.index != nil {
		w.index.RecordSave(path, req.Save, false)
	}
	if w.mirror != nil {
		w.mirror.Enqueue(path)
	}
	if err := snapshot.Prune(w.dir, w.keepSaves); err != nil {
		w.log.Printf("WARN save prune: %v", err)
	}
	if !req.Backup {
		return
	}
	bpath, err := snapshot.WriteBackup(w.dir, req.Save, w.keepBackup)
	if err != nil {
		w.log.Printf("WARN save backup tick %d: %v", req.Save.Header.Tick, err)
	}
	if bpath == "" {
		return
	}
	if w.index != nil {
		w.index.RecordSave(bpath, req.Save, true)
	}
	if w.mirror != nil {
		w.mirror.Enqueue(bpath)
	}
}
