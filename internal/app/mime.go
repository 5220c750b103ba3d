package app

import (
	"log"
	"mime"
)

// CAD and drawing formats customers attach to inquiries.
func init() {
	ensureMimeType(".pdf", "application/pdf")
	ensureMimeType(".dxf", "image/vnd.dxf")
	ensureMimeType(".dwg", "image/vnd.dwg")
	ensureMimeType(".step", "model/step")
	ensureMimeType(".stp", "model/step")
	ensureMimeType(".igs", "model/iges")
	ensureMimeType(".iges", "model/iges")
	ensureMimeType(".stl", "model/stl")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
