package saga

// Undo-construction helpers for the common forward actions. The layer
// that builds saga steps uses these so compensations stay consistent.

// UndoForCreate compensates creating a file by deleting it.
func UndoForCreate(path string) *UndoAction {
	return &UndoAction{Type: UndoDeleteFile, Path: path}
}

// UndoForModify compensates modifying a file.
//
// With a captured backup the compensation restores it. Without a backup
// the only available approximation is deleting the file, which is
// correct only when the file did not exist before the modification; if
// it existed and simply was not backed up, rolling back loses data. The
// layer that builds saga steps must either capture a backup for every
// modify, or register the step with a nil undo so it is an explicit
// non-reversible checkpoint instead of a silently lossy one.
func UndoForModify(path, backup string) *UndoAction {
	if backup == "" {
		return &UndoAction{Type: UndoDeleteFile, Path: path}
	}
	return &UndoAction{Type: UndoRestoreFile, Path: path, Backup: backup}
}

// UndoForCommit compensates a version-control commit by reverting it.
func UndoForCommit(commit string) *UndoAction {
	return &UndoAction{Type: UndoRevertCommit, Commit: commit}
}

// UndoForDependency compensates adding a dependency by removing it.
func UndoForDependency(name string) *UndoAction {
	return &UndoAction{Type: UndoRemoveDependency, Dependency: name}
}

// UndoCustomHandler compensates through a named handler with opaque
// parameters.
func UndoCustomHandler(handler string, params map[string]string) *UndoAction {
	return &UndoAction{Type: UndoCustom, Handler: handler, Params: params}
}
