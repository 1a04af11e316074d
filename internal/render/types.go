package render

import (
	"path"
	"strings"
)

// Extension tables used by the listing page. Last matching group wins, which
// is why "quicktime" and "video" files are both "fa-film".
var dataTypes = []extGroup{
	{"audio", "m4a,mp3,oga,ogg,webma,wav"},
	{"archive", "7z,zip,rar,gz,tar"},
	{"image", "gif,ico,jpe,jpeg,jpg,png,svg,webp"},
	{"pdf", "pdf"},
	{"quicktime", "3g2,3gp,3gp2,3gpp,mov,qt"},
	{"source", "atom,bat,bash,c,cmd,coffee,css,hml,js,json,java,less,markdown,md,php,pl,py,rb,rss,sass,scpt,swift,scss,sh,xml,yml,plist"},
	{"text", "txt"},
	{"video", "mp4,m4v,ogv,webm"},
	{"website", "htm,html,mhtm,mhtml,xhtm,xhtml"},
}

var iconTypes = []extGroup{
	{"fa-music", "m4a,mp3,oga,ogg,webma,wav"},
	{"fa-archive", "7z,zip,rar,gz,tar"},
	{"fa-picture-o", "gif,ico,jpe,jpeg,jpg,png,svg,webp"},
	{"fa-file-text", "pdf"},
	{"fa-film", "3g2,3gp,3gp2,3gpp,mov,qt,mp4,m4v,ogv,webm"},
	{"fa-code", "atom,plist,bat,bash,c,cmd,coffee,css,hml,js,json,java,less,markdown,md,php,pl,py,rb,rss,sass,scpt,swift,scss,sh,xml,yml"},
	{"fa-file-text-o", "txt"},
	{"fa-globe", "htm,html,mhtm,mhtml,xhtm,xhtml"},
}

type extGroup struct {
	label string
	exts  string
}

func (g extGroup) has(ext string) bool {
	for _, e := range strings.Split(g.exts, ",") {
		if e == ext {
			return true
		}
	}
	return false
}

func lookup(groups []extGroup, name, fallback string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return fallback
	}
	out := fallback
	for _, g := range groups {
		if g.has(ext) {
			out = g.label
		}
	}
	return out
}

// DataType classifies a file name for the listing page ("image", "video", ...).
func DataType(name string) string {
	return lookup(dataTypes, name, "unknown")
}

// Icon returns the icon class for a file name.
func Icon(name string) string {
	return lookup(iconTypes, name, "fa-file-o")
}
