package porter

import (
	"fmt"
	"sync"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/google/uuid"
)

type Kind string

const (
	KindClone    Kind = "clone"
	KindDownload Kind = "download"
)

type State int

const (
	StateCreated State = iota
	StateFetchingSource
	StatePreparingDestination
	StateProcessingItems
	StateFinalizing
	StateCompleted
	StateFailedFatal
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateFetchingSource:
		return "fetching_source"
	case StatePreparingDestination:
		return "preparing_destination"
	case StateProcessingItems:
		return "processing_items"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateFailedFatal:
		return "failed_fatal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailedFatal
}

// CanTransition reports whether the task may move from s to next. Item
// processing never fails fatally; once it starts the task always finalizes.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateCreated:
		return next == StateFetchingSource
	case StateFetchingSource:
		return next == StatePreparingDestination || next == StateFailedFatal
	case StatePreparingDestination:
		return next == StateProcessingItems || next == StateFailedFatal
	case StateProcessingItems:
		return next == StateFinalizing
	case StateFinalizing:
		return next == StateCompleted
	default:
		return false
	}
}

type Destination struct {
	// Name and Title describe the pack created by a clone.
	Name  string
	Title string
	// Dir is the download target as the user typed it.
	Dir string
}

type Progress struct {
	Attempted int
	Succeeded int
}

type ItemError struct {
	Index  int
	Label  string
	Reason string
}

// Task is one accepted clone or download request. Only the engine run that
// owns it mutates it; the accessors are safe to call from other goroutines.
type Task struct {
	ID              string
	Kind            Kind
	SourceSet       string
	Destination     Destination
	RequesterID     int64
	ChatID          int64
	StatusMessageID int64

	mu           sync.Mutex
	state        State
	itemsFetched bool
	items        []telegramapi.Sticker
	sourceTitle  string
	sourceName   string
	stickerType  string
	progress     Progress
	itemErrors   []ItemError
	files        []string
	resolvedDir  string
	shareLink    string
	fatal        *FatalError
}

type CloneRequest struct {
	SourceSet   string
	Title       string
	RequesterID int64
	ChatID      int64
}

type DownloadRequest struct {
	SourceSet   string
	Dir         string
	RequesterID int64
	ChatID      int64
}

func NewCloneTask(req CloneRequest) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Kind:        KindClone,
		SourceSet:   req.SourceSet,
		Destination: Destination{Title: req.Title},
		RequesterID: req.RequesterID,
		ChatID:      req.ChatID,
		state:       StateCreated,
	}
}

func NewDownloadTask(req DownloadRequest) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Kind:        KindDownload,
		SourceSet:   req.SourceSet,
		Destination: Destination{Dir: req.Dir},
		RequesterID: req.RequesterID,
		ChatID:      req.ChatID,
		state:       StateCreated,
	}
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) transition(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.CanTransition(next) {
		return fmt.Errorf("invalid task transition %s -> %s", t.state, next)
	}
	t.state = next
	return nil
}

// abort forces a terminal failure outside the normal machine; it is used only
// when the run itself panics.
func (t *Task) abort(fe *FatalError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.fatal = fe
	t.state = StateFailedFatal
}

// setSource records the fetched item list. It takes effect only once.
func (t *Task) setSource(set *telegramapi.StickerSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.itemsFetched || set == nil {
		return
	}
	t.itemsFetched = true
	t.items = append([]telegramapi.Sticker(nil), set.Stickers...)
	t.sourceTitle = set.Title
	t.sourceName = set.Name
	t.stickerType = set.StickerType
	if t.sourceName == "" {
		t.sourceName = t.SourceSet
	}
}

func (t *Task) Items() []telegramapi.Sticker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]telegramapi.Sticker(nil), t.items...)
}

func (t *Task) ItemCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Task) attempt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress.Attempted < len(t.items) {
		t.progress.Attempted++
	}
}

func (t *Task) succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress.Succeeded < t.progress.Attempted {
		t.progress.Succeeded++
	}
}

func (t *Task) recordItemError(ie ItemError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.itemErrors = append(t.itemErrors, ie)
}

func (t *Task) addFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = append(t.files, path)
}

func (t *Task) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task) ItemErrors() []ItemError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ItemError(nil), t.itemErrors...)
}

// Files lists the paths written by a download, in item order.
func (t *Task) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.files...)
}

func (t *Task) SourceTitle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sourceTitle
}

func (t *Task) ShareLink() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shareLink
}

func (t *Task) ResolvedDir() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolvedDir
}

// Err returns the fatal error that ended the task, or nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fatal == nil {
		return nil
	}
	return t.fatal
}

type Summary struct {
	ID          string         `yaml:"id" json:"id"`
	Kind        Kind           `yaml:"kind" json:"kind"`
	Source      string         `yaml:"source" json:"source"`
	SourceTitle string         `yaml:"source_title,omitempty" json:"source_title,omitempty"`
	State       string         `yaml:"state" json:"state"`
	Total       int            `yaml:"total" json:"total"`
	Attempted   int            `yaml:"attempted" json:"attempted"`
	Succeeded   int            `yaml:"succeeded" json:"succeeded"`
	Failed      int            `yaml:"failed" json:"failed"`
	ShareLink   string         `yaml:"share_link,omitempty" json:"share_link,omitempty"`
	Directory   string         `yaml:"directory,omitempty" json:"directory,omitempty"`
	Files       []string       `yaml:"files,omitempty" json:"files,omitempty"`
	Errors      []SummaryError `yaml:"errors,omitempty" json:"errors,omitempty"`
	Fatal       string         `yaml:"fatal,omitempty" json:"fatal,omitempty"`
}

type SummaryError struct {
	Index  int    `yaml:"index" json:"index"`
	Label  string `yaml:"label" json:"label"`
	Reason string `yaml:"reason" json:"reason"`
}

func (t *Task) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		ID:          t.ID,
		Kind:        t.Kind,
		Source:      t.SourceSet,
		SourceTitle: t.sourceTitle,
		State:       t.state.String(),
		Total:       len(t.items),
		Attempted:   t.progress.Attempted,
		Succeeded:   t.progress.Succeeded,
		Failed:      len(t.itemErrors),
		ShareLink:   t.shareLink,
		Directory:   t.resolvedDir,
		Files:       append([]string(nil), t.files...),
	}
	for _, ie := range t.itemErrors {
		s.Errors = append(s.Errors, SummaryError{Index: ie.Index, Label: ie.Label, Reason: ie.Reason})
	}
	if t.fatal != nil {
		s.Fatal = t.fatal.Error()
	}
	return s
}
