package commands

import "strings"

const ProjectURL = "https://github.com/Riniba/TelegramStickerPorter"

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func CloneHelpText() string {
	return lines(
		"💎 <b>贴纸/表情克隆使用说明</b> 💎",
		"",
		"请输入您想要的目标贴纸包（或表情包）的名称，以及需要克隆的原始贴纸包（或表情包）链接，格式如下：",
		"",
		"<code>"+cloneUsage+"</code>",
		"",
		"例如：",
		"<code>克隆#我的可爱表情包#https://t.me/addstickers/pack_bafb8ef1_by_stickerporter_bot</code>",
		"",
		"<code>克隆#我的酷酷的贴纸包#https://t.me/addemoji/pack_7f810f59_by_stickerporter_bot</code>",
		"",
		"🔹 <b>克隆</b>：命令前缀，触发克隆操作。",
		"🔹 <b>您的贴纸包（或表情包）名称</b>：您希望克隆后新贴纸包（或表情包）的名称。",
		"🔹 <b>需要克隆的贴纸包（或表情包）链接</b>：原始贴纸（或表情包）的链接。",
		"",
		"请确保信息填写正确，以便程序顺利克隆哦～ 🚀",
	)
}

func DownloadHelpText() string {
	return lines(
		"💾 <b>贴纸包下载使用说明</b> 💾",
		"",
		"您可以下载指定贴纸包中的所有贴纸到本地设备。使用方法如下：",
		"",
		"<code>"+downloadUsage+"</code>",
		"",
		"例如：",
		"<code>下载#./Downloads/my-stickers#https://t.me/addstickers/animals_collection</code>",
		"",
		"🔹 <b>下载</b>：命令前缀，触发下载操作",
		"🔹 <b>目标文件夹路径</b>：存放下载贴纸的本地文件夹路径",
		"🔹 <b>贴纸包链接</b>：要下载的Telegram贴纸包链接",
		"",
		"注意：",
		"- 请确保有足够的磁盘空间存储贴纸文件",
		"- 大型贴纸包可能需要较长的下载时间",
		"- 建议在网络良好的环境下进行操作",
	)
}

func InfoText() string {
	return lines(
		"💎 <b>开源地址:</b> 💎",
		ProjectURL,
		"",
	)
}
