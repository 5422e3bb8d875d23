package porter

import (
	"fmt"
	"html"
	"strings"
)

const (
	CloneStartText    = "✨ 正在开始克隆贴纸包，请稍候...\n此过程可能需要几分钟。"
	DownloadStartText = "💾 正在准备下载贴纸包，请稍候...\n此过程可能需要几分钟，取决于贴纸数量和大小。"
)

func esc(s string) string { return html.EscapeString(s) }

func stickerTypeLabel(stickerType string) string {
	if strings.TrimSpace(stickerType) == "" {
		return "regular"
	}
	return stickerType
}

func cloneSourceSummary(title string, count int, stickerType string) string {
	var b strings.Builder
	b.WriteString("📦 源贴纸包信息:\n")
	fmt.Fprintf(&b, "📝 标题: %s\n", esc(title))
	fmt.Fprintf(&b, "🔢 贴纸数量: %d\n", count)
	fmt.Fprintf(&b, "📋 类型: %s\n\n", esc(stickerTypeLabel(stickerType)))
	b.WriteString("⏳ 正在创建新贴纸包...")
	return b.String()
}

func downloadSourceSummary(title string, count int, stickerType, dir string) string {
	var b strings.Builder
	b.WriteString("📦 贴纸包信息:\n")
	fmt.Fprintf(&b, "📝 标题: %s\n", esc(title))
	fmt.Fprintf(&b, "🔢 贴纸数量: %d\n", count)
	fmt.Fprintf(&b, "📋 类型: %s\n", esc(stickerTypeLabel(stickerType)))
	fmt.Fprintf(&b, "📁 下载位置: %s\n\n", esc(dir))
	b.WriteString("⏳ 开始下载贴纸...")
	return b.String()
}

func packCreatedText(title string) string {
	return fmt.Sprintf("📦 新贴纸包创建完成: %s\n⏳ 正在添加剩余贴纸...", esc(title))
}

func cloneProgressText(index, remaining int) string {
	return fmt.Sprintf("[进度] 正在添加第 %d/%d 个贴纸", index, remaining)
}

func downloadProgressText(index, total, done int) string {
	return fmt.Sprintf("[进度] 正在下载第 %d/%d 个贴纸\n已完成: %d/%d", index+1, total, done, total)
}

func cloneReport(t *Task) string {
	total := t.ItemCount()
	errs := t.ItemErrors()
	var b strings.Builder
	b.WriteString("✅ 贴纸包克隆完成！\n\n")
	fmt.Fprintf(&b, "📝 标题: %s\n", esc(t.Destination.Title))
	fmt.Fprintf(&b, "🔢 总计: %d 个贴纸\n", total)
	fmt.Fprintf(&b, "✅ 成功: %d 个\n", t.Progress().Succeeded)
	fmt.Fprintf(&b, "🔗 链接: %s", esc(t.ShareLink()))
	if len(errs) > 0 {
		b.WriteString("\n\n⚠️ 部分贴纸上传失败：\n")
		for i, ie := range errs {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s 添加失败: %s", esc(ie.Label), esc(ie.Reason))
		}
	}
	return b.String()
}

func downloadReport(t *Task, maxErrors int) string {
	total := t.ItemCount()
	errs := t.ItemErrors()
	var b strings.Builder
	b.WriteString("✅ 贴纸包下载完成！\n\n")
	fmt.Fprintf(&b, "📁 下载位置: %s\n", esc(t.ResolvedDir()))
	fmt.Fprintf(&b, "📝 贴纸包标题: %s\n", esc(t.SourceTitle()))
	fmt.Fprintf(&b, "🔢 总数: %d 个贴纸\n", total)
	fmt.Fprintf(&b, "✅ 成功下载: %d 个\n", t.Progress().Succeeded)
	fmt.Fprintf(&b, "❌ 失败: %d 个", len(errs))
	if len(errs) > 0 {
		b.WriteString("\n\n⚠️ 失败的贴纸:")
		shown := errs
		if maxErrors > 0 && len(shown) > maxErrors {
			shown = shown[:maxErrors]
		}
		for _, ie := range shown {
			fmt.Fprintf(&b, "\n- %s: %s", esc(ie.Label), esc(ie.Reason))
		}
		if rest := len(errs) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "\n- ...还有 %d 个错误", rest)
		}
	}
	return b.String()
}

func fatalReport(kind Kind, err error) string {
	msg := "未知错误"
	if err != nil {
		msg = err.Error()
	}
	if kind == KindDownload {
		return fmt.Sprintf("❌ 下载过程中出现错误：\n%s\n\n请检查网络连接和目标文件夹权限后重试。", esc(msg))
	}
	return fmt.Sprintf("❌ 克隆过程中出现错误：\n%s\n\n请稍后重试或联系管理员。", esc(msg))
}
