// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import "fmt"

// refKind discriminates the three identity namespaces a client can use
// to point at a module.
type refKind int

const (
	refNone refKind = iota
	refTemp         // client-local key for a module that has no row yet
	refDraft        // id of an existing module draft row
	refMaster       // id of the master module a row supersedes
)

// ModuleRef is a tagged reference into one of the three overlapping
// module identity namespaces: tempKey, draftId or originalModuleId.
type ModuleRef struct {
	kind refKind
	temp string
	id   int64
}

// TempRef references a module by its client-local temp key.
func TempRef(key string) ModuleRef { return ModuleRef{kind: refTemp, temp: key} }

// DraftRef references a module by its module-draft row id.
func DraftRef(id int64) ModuleRef { return ModuleRef{kind: refDraft, id: id} }

// MasterRef references a module by the master module id it supersedes.
func MasterRef(id int64) ModuleRef { return ModuleRef{kind: refMaster, id: id} }

// IsZero reports whether the reference is empty.
func (r ModuleRef) IsZero() bool { return r.kind == refNone }

// String renders the reference for error messages.
func (r ModuleRef) String() string {
	switch r.kind {
	case refTemp:
		return fmt.Sprintf("tempKey(%s)", r.temp)
	case refDraft:
		return fmt.Sprintf("draftId(%d)", r.id)
	case refMaster:
		return fmt.Sprintf("originalModuleId(%d)", r.id)
	default:
		return "none"
	}
}

// refTable maps every reference seen during one SaveModules call to the
// module-draft row id it resolved to. One table exists per call; it is
// what lets a child descriptor reference a parent created earlier in
// the same batch.
type refTable struct {
	byTemp   map[string]int64
	byDraft  map[int64]int64
	byMaster map[int64]int64
}

func newRefTable() *refTable {
	return &refTable{
		byTemp:   make(map[string]int64),
		byDraft:  make(map[int64]int64),
		byMaster: make(map[int64]int64),
	}
}

// bind records that ref resolved to the given module-draft row.
func (t *refTable) bind(ref ModuleRef, moduleDraftID int64) {
	switch ref.kind {
	case refTemp:
		t.byTemp[ref.temp] = moduleDraftID
	case refDraft:
		t.byDraft[ref.id] = moduleDraftID
	case refMaster:
		t.byMaster[ref.id] = moduleDraftID
	}
}

// resolve looks a reference up. The second return reports whether the
// reference was bound during this call.
func (t *refTable) resolve(ref ModuleRef) (int64, bool) {
	switch ref.kind {
	case refTemp:
		id, ok := t.byTemp[ref.temp]
		return id, ok
	case refDraft:
		id, ok := t.byDraft[ref.id]
		return id, ok
	case refMaster:
		id, ok := t.byMaster[ref.id]
		return id, ok
	default:
		return 0, false
	}
}
