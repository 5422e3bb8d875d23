package porter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cailuoli520/TelegramStickerPorter/internal/telegramapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu sync.Mutex

	username    string
	usernameErr error
	set         *telegramapi.StickerSet
	setErr      error
	createErr   error
	addErr      map[string]error
	fileErr     map[string]error
	downloadErr map[string]error
	panicOnAdd  bool

	created   []string
	createdN  int
	added     []telegramapi.InputSticker
	onAdd     func()
	fetchedAt []string
}

func (f *fakePlatform) BotUsername(context.Context) (string, error) {
	return f.username, f.usernameErr
}

func (f *fakePlatform) GetStickerSet(_ context.Context, name string) (*telegramapi.StickerSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedAt = append(f.fetchedAt, name)
	if f.setErr != nil {
		return nil, f.setErr
	}
	return f.set, nil
}

func (f *fakePlatform) CreateNewStickerSet(_ context.Context, _ int64, name, _ string, stickers []telegramapi.InputSticker, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, name)
	f.createdN = len(stickers)
	return nil
}

func (f *fakePlatform) AddStickerToSet(_ context.Context, _ int64, _ string, st telegramapi.InputSticker) error {
	if f.panicOnAdd {
		panic("boom")
	}
	if f.onAdd != nil {
		f.onAdd()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.addErr[st.Sticker]; err != nil {
		return err
	}
	f.added = append(f.added, st)
	return nil
}

func (f *fakePlatform) GetFile(_ context.Context, fileID string) (*telegramapi.File, error) {
	if err := f.fileErr[fileID]; err != nil {
		return nil, err
	}
	return &telegramapi.File{FileID: fileID, FilePath: "stickers/" + fileID}, nil
}

func (f *fakePlatform) DownloadFile(_ context.Context, filePath string, w io.Writer) (int64, error) {
	id := strings.TrimPrefix(filePath, "stickers/")
	if err := f.downloadErr[id]; err != nil {
		_, _ = w.Write([]byte("partial"))
		return 7, err
	}
	n, err := w.Write([]byte("data-" + id))
	return int64(n), err
}

type recordingStatus struct {
	mu      sync.Mutex
	updates []string
	ctxErrs []error
}

func (r *recordingStatus) Update(ctx context.Context, _ int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, text)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
}

func (r *recordingStatus) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return ""
	}
	return r.updates[len(r.updates)-1]
}

func testEngine(p Platform, sleeps *[]time.Duration) *Engine {
	return NewEngine(p, Options{
		CloneDelay:    DefaultCloneDelay,
		DownloadDelay: DefaultDownloadDelay,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep: func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
		PackSuffix: func() string { return "a1b2c3d4" },
	})
}

func stickers(ids ...string) []telegramapi.Sticker {
	out := make([]telegramapi.Sticker, 0, len(ids))
	for _, id := range ids {
		out = append(out, telegramapi.Sticker{FileID: id, Emoji: "🙂"})
	}
	return out
}

func TestCloneFoldsItemFailures(t *testing.T) {
	p := &fakePlatform{
		username: "PorterBot",
		set:      &telegramapi.StickerSet{Name: "src", Title: "Source", StickerType: telegramapi.StickerTypeRegular, Stickers: stickers("f0", "f1", "f2")},
		addErr:   map[string]error{"f2": errors.New("STICKER_INVALID")},
	}
	var sleeps []time.Duration
	status := &recordingStatus{}
	task := NewCloneTask(CloneRequest{SourceSet: "src", Title: "Mine", RequesterID: 7, ChatID: 7})

	testEngine(p, &sleeps).Run(context.Background(), task, status)

	require.Equal(t, StateCompleted, task.State())
	require.NoError(t, task.Err())
	assert.Equal(t, []string{"pack_a1b2c3d4_by_porterbot"}, p.created)
	assert.Equal(t, 1, p.createdN)
	assert.Len(t, p.added, 1)
	assert.Equal(t, Progress{Attempted: 3, Succeeded: 2}, task.Progress())
	require.Len(t, task.ItemErrors(), 1)
	assert.Equal(t, 2, task.ItemErrors()[0].Index)
	assert.Equal(t, "https://t.me/addstickers/pack_a1b2c3d4_by_porterbot", task.ShareLink())
	assert.Equal(t, []time.Duration{DefaultCloneDelay, DefaultCloneDelay}, sleeps)

	report := status.last()
	assert.Contains(t, report, "✅ 贴纸包克隆完成！")
	assert.Contains(t, report, "🔢 总计: 3 个贴纸")
	assert.Contains(t, report, "贴纸 2 添加失败: STICKER_INVALID")
	assert.Contains(t, report, "https://t.me/addstickers/pack_a1b2c3d4_by_porterbot")
	assert.Contains(t, strings.Join(status.updates, "\n"), "[进度] 正在添加第 1/2 个贴纸")
}

func TestCloneCustomEmojiLink(t *testing.T) {
	p := &fakePlatform{
		username: "bot",
		set:      &telegramapi.StickerSet{Name: "e", Title: "E", StickerType: telegramapi.StickerTypeCustomEmoji, Stickers: stickers("x")},
	}
	task := NewCloneTask(CloneRequest{SourceSet: "e", Title: "T"})
	testEngine(p, nil).Run(context.Background(), task, &recordingStatus{})

	require.Equal(t, StateCompleted, task.State())
	assert.Equal(t, "https://t.me/addemoji/pack_a1b2c3d4_by_bot", task.ShareLink())
	assert.Equal(t, Progress{Attempted: 1, Succeeded: 1}, task.Progress())
}

func TestCloneFatalPaths(t *testing.T) {
	set := &telegramapi.StickerSet{Name: "s", Title: "S", Stickers: stickers("a", "b")}
	cases := []struct {
		name string
		p    *fakePlatform
		want error
	}{
		{"source missing", &fakePlatform{username: "bot", setErr: errors.New("Bad Request: STICKERSET_INVALID")}, ErrSourceNotFound},
		{"empty source", &fakePlatform{username: "bot", set: &telegramapi.StickerSet{Name: "s"}}, ErrEmptySourceSet},
		{"bad bot name", &fakePlatform{username: "bad-name", set: set}, ErrInvalidDestinationName},
		{"username lookup", &fakePlatform{usernameErr: errors.New("no session"), set: set}, ErrInvalidDestinationName},
		{"create fails", &fakePlatform{username: "bot", set: set, createErr: errors.New("PEER_ID_INVALID")}, ErrPackCreationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := &recordingStatus{}
			task := NewCloneTask(CloneRequest{SourceSet: "s", Title: "T"})
			testEngine(tc.p, nil).Run(context.Background(), task, status)

			require.Equal(t, StateFailedFatal, task.State())
			require.ErrorIs(t, task.Err(), tc.want)
			assert.Empty(t, tc.p.added)
			assert.True(t, strings.HasPrefix(status.last(), "❌ 克隆过程中出现错误："))
		})
	}
}

func TestDownloadWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := &fakePlatform{
		set: &telegramapi.StickerSet{Name: "src_pack", Title: "Src", Stickers: []telegramapi.Sticker{
			{FileID: "s0", Emoji: "😀"},
			{FileID: "s1", IsAnimated: true},
		}},
	}
	var sleeps []time.Duration
	status := &recordingStatus{}
	task := NewDownloadTask(DownloadRequest{SourceSet: "src_pack", Dir: dir})

	testEngine(p, &sleeps).Run(context.Background(), task, status)

	require.Equal(t, StateCompleted, task.State())
	assert.Equal(t, Progress{Attempted: 2, Succeeded: 2}, task.Progress())
	assert.Empty(t, task.ItemErrors())
	assert.Equal(t, []time.Duration{DefaultDownloadDelay, DefaultDownloadDelay}, sleeps)

	b, err := os.ReadFile(filepath.Join(dir, "src_pack_000.webp"))
	require.NoError(t, err)
	assert.Equal(t, "data-s0", string(b))
	_, err = os.Stat(filepath.Join(dir, "src_pack_001.tgs"))
	require.NoError(t, err)

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, task.ResolvedDir())
	report := status.last()
	assert.Contains(t, report, "✅ 成功下载: 2 个")
	assert.Contains(t, report, "❌ 失败: 0 个")
	assert.NotContains(t, report, "⚠️ 失败的贴纸")
}

func TestDownloadItemFailuresCapped(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	fileErr := map[string]error{}
	for _, id := range ids[:7] {
		fileErr[id] = errors.New("file is too big")
	}
	p := &fakePlatform{
		set:         &telegramapi.StickerSet{Name: "p", Title: "P", Stickers: stickers(ids...)},
		fileErr:     fileErr,
		downloadErr: map[string]error{"h": errors.New("connection reset")},
	}
	status := &recordingStatus{}
	task := NewDownloadTask(DownloadRequest{SourceSet: "p", Dir: dir})
	testEngine(p, nil).Run(context.Background(), task, status)

	require.Equal(t, StateCompleted, task.State())
	assert.Equal(t, Progress{Attempted: 8, Succeeded: 0}, task.Progress())
	assert.Len(t, task.ItemErrors(), 8)

	report := status.last()
	assert.Contains(t, report, "- sticker_000_🙂: 无法获取文件信息: file is too big")
	assert.Contains(t, report, "- ...还有 3 个错误")
	assert.Equal(t, 5, strings.Count(report, "\n- sticker_"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed transfers must not leave files behind")
}

func TestDownloadEmptySetCompletes(t *testing.T) {
	p := &fakePlatform{set: &telegramapi.StickerSet{Name: "empty", Title: "Empty"}}
	status := &recordingStatus{}
	task := NewDownloadTask(DownloadRequest{SourceSet: "empty", Dir: t.TempDir()})
	testEngine(p, nil).Run(context.Background(), task, status)

	require.Equal(t, StateCompleted, task.State())
	assert.Equal(t, Progress{}, task.Progress())
	assert.Contains(t, status.last(), "🔢 总数: 0 个贴纸")
}

func TestDownloadDestinationUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	p := &fakePlatform{set: &telegramapi.StickerSet{Name: "s", Stickers: stickers("a")}}
	status := &recordingStatus{}
	task := NewDownloadTask(DownloadRequest{SourceSet: "s", Dir: filepath.Join(blocker, "sub")})
	testEngine(p, nil).Run(context.Background(), task, status)

	require.Equal(t, StateFailedFatal, task.State())
	require.ErrorIs(t, task.Err(), ErrDestinationUnavailable)
	assert.Empty(t, p.fetchedAt)
	assert.True(t, strings.HasPrefix(status.last(), "❌ 下载过程中出现错误："))
}

func TestCanceledCloneFinalizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakePlatform{
		username: "bot",
		set:      &telegramapi.StickerSet{Name: "s", Title: "S", Stickers: stickers("a", "b", "c", "d")},
	}
	p.onAdd = cancel
	status := &recordingStatus{}
	task := NewCloneTask(CloneRequest{SourceSet: "s", Title: "T"})
	testEngine(p, nil).Run(ctx, task, status)

	require.Equal(t, StateCompleted, task.State())
	prog := task.Progress()
	assert.Equal(t, 2, prog.Succeeded)
	assert.Len(t, task.ItemErrors(), 2)
	assert.Equal(t, 4-len(task.ItemErrors()), prog.Succeeded)

	status.mu.Lock()
	lastErr := status.ctxErrs[len(status.ctxErrs)-1]
	status.mu.Unlock()
	assert.NoError(t, lastErr, "final report uses a live context")
}

func TestPanicIsReportedAsFatal(t *testing.T) {
	p := &fakePlatform{
		username:   "bot",
		set:        &telegramapi.StickerSet{Name: "s", Title: "S", Stickers: stickers("a", "b")},
		panicOnAdd: true,
	}
	status := &recordingStatus{}
	task := NewCloneTask(CloneRequest{SourceSet: "s", Title: "T"})

	require.NotPanics(t, func() { testEngine(p, nil).Run(context.Background(), task, status) })
	require.Equal(t, StateFailedFatal, task.State())
	require.ErrorIs(t, task.Err(), ErrTaskAborted)
	assert.Contains(t, status.last(), "❌ 克隆过程中出现错误：")
}

func TestSuccessCountProperty(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n%d_k%d", n, k), func(t *testing.T) {
				ids := make([]string, n)
				addErr := map[string]error{}
				for i := range ids {
					ids[i] = fmt.Sprintf("id%d", i)
				}
				// the seed item never fails here; failures start at index 1
				for i := 1; i <= k && i < n; i++ {
					addErr[ids[i]] = errors.New("nope")
				}
				p := &fakePlatform{username: "bot", set: &telegramapi.StickerSet{Name: "s", Stickers: stickers(ids...)}, addErr: addErr}
				task := NewCloneTask(CloneRequest{SourceSet: "s", Title: "T"})
				testEngine(p, nil).Run(context.Background(), task, nil)

				require.Equal(t, StateCompleted, task.State())
				assert.Equal(t, n-len(task.ItemErrors()), task.Progress().Succeeded)
				assert.Equal(t, n, task.Progress().Attempted)
			})
		}
	}
}
