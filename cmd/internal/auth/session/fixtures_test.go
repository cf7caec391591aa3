package session

import "time"

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func laptop(id string) Device {
	return Device{
		ID: id,
		UserAgent: UserAgent{
			UA:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0",
			Browser: Browser{Name: "Chrome", Version: "126.0.0.0", Major: "126"},
			Engine:  NameVersion{Name: "Blink", Version: "126.0.0.0"},
			OS:      NameVersion{Name: "Windows", Version: "10"},
			CPU:     CPU{Architecture: "amd64"},
		},
		WindowScreen:  WindowScreen{Width: 1920, Height: 1080, ColorDepth: 24},
		WebGLInfo:     WebGLInfo{Vendor: "Google Inc. (NVIDIA)", Renderer: "ANGLE (NVIDIA GeForce RTX 3060)", Version: "WebGL 1.0"},
		HeapSizeLimit: 4096,
	}
}

func phone(id string) Device {
	return Device{
		ID: id,
		UserAgent: UserAgent{
			UA:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) Safari/604.1",
			Browser: Browser{Name: "Mobile Safari", Version: "17.5", Major: "17"},
			Engine:  NameVersion{Name: "WebKit", Version: "605.1.15"},
			OS:      NameVersion{Name: "iOS", Version: "17.5"},
			Device:  HardwareInfo{Vendor: "Apple", Model: "iPhone", Type: "mobile"},
		},
		WindowScreen: WindowScreen{Width: 390, Height: 844, ColorDepth: 32},
		WebGLInfo:    WebGLInfo{Vendor: "Apple Inc.", Renderer: "Apple GPU", Version: "WebGL 1.0"},
	}
}
