package shell

import (
	"strings"

	"adbfleet/adb"
)

// Quote wraps s in single quotes for the device shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func quotePath(remote string) string {
	return Quote(adb.RemotePath(remote))
}

var suEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// Su renders command as `su -c "<command>"`. Characters that the device shell
// would interpret inside double quotes are escaped.
func Su(command string) string {
	return `su -c "` + suEscaper.Replace(command) + `"`
}

var contentEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// escapeContent keeps echoed content on one line.
func escapeContent(content string) string {
	return contentEscaper.Replace(content)
}
