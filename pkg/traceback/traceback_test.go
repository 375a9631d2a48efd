// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package traceback

import (
	"testing"

	"github.com/kraklabs/autodebug/pkg/model"
)

const pythonLog = `Traceback (most recent call last):
  File "/app/main.py", line 10, in main
    process_data(items)
  File "/app/src/main.py", line 42, in process_data
    return items[0] / 0
ZeroDivisionError: division by zero`

const goLog = `panic: runtime error: invalid memory address or nil pointer dereference
goroutine 1 [running]:
main.processData(...)
	/app/main.go:25 +0x1a
main.main()
	/app/main.go:12 +0x45`

const jsLog = `TypeError: Cannot read properties of undefined (reading 'id')
    at getUser (/app/src/users.js:14:9)
    at async handleRequest (/app/src/server.js:30:3)`

const javaLog = `Exception in thread "main" java.lang.NullPointerException
	at com.example.Service.process(Service.java:55)
	at com.example.Main.main(Main.java:10)`

const rustLog = `thread 'main' panicked at 'index out of bounds', src/main.rs:8:5
stack backtrace:
   0: rust_begin_unwind
   1: core::panicking::panic_fmt
   at src/main.rs:8
`

func TestDetect_Python(t *testing.T) {
	lang, frames := Detect(pythonLog, "")
	if lang != model.LangPython {
		t.Fatalf("lang = %q, want python", lang)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Symbol != "main" || frames[1].Symbol != "process_data" {
		t.Errorf("unexpected frame order: %+v", frames)
	}
	if frames[0].File != "/app/main.py" || frames[1].Line != 42 {
		t.Errorf("unexpected frame fields: %+v", frames)
	}
	if msg := ErrorMessage(pythonLog); msg != "ZeroDivisionError: division by zero" {
		t.Errorf("ErrorMessage = %q", msg)
	}
}

func TestDetect_Go(t *testing.T) {
	lang, frames := Detect(goLog, "")
	if lang != model.LangGo {
		t.Fatalf("lang = %q, want go", lang)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	// Oldest-caller-first: main.main then main.processData.
	if frames[0].Symbol != "main.main" || frames[1].Symbol != "main.processData" {
		t.Errorf("unexpected order: %+v", frames)
	}
	if frames[1].Line != 25 {
		t.Errorf("crash frame line = %d, want 25", frames[1].Line)
	}
}

func TestDetect_JavaScript(t *testing.T) {
	lang, frames := Detect(jsLog, "")
	if lang != model.LangJavaScript {
		t.Fatalf("lang = %q, want javascript", lang)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Symbol != "handleRequest" || frames[1].Symbol != "getUser" {
		t.Errorf("unexpected order: %+v", frames)
	}
}

func TestDetect_Java(t *testing.T) {
	lang, frames := Detect(javaLog, "")
	if lang != model.LangJava {
		t.Fatalf("lang = %q, want java", lang)
	}
	if len(frames) != 2 || frames[0].Symbol != "com.example.Main.main" {
		t.Errorf("unexpected frames: %+v", frames)
	}
}

func TestDetect_Rust(t *testing.T) {
	lang, _ := Detect(rustLog, "")
	if lang != model.LangRust {
		t.Fatalf("lang = %q, want rust", lang)
	}
}

func TestDetect_Unknown(t *testing.T) {
	lang, frames := Detect("nothing useful here", "")
	if lang != model.LangUnknown {
		t.Errorf("lang = %q, want unknown", lang)
	}
	if frames != nil {
		t.Errorf("frames = %+v, want nil", frames)
	}
}

func TestDetect_HintWins(t *testing.T) {
	// A log that parses under both python and go should honor an explicit
	// go hint, even though python comes first in the detection order.
	lang, _ := Detect(pythonLog+"\n"+goLog, model.LangGo)
	if lang != model.LangGo {
		t.Errorf("lang = %q, want go (hint)", lang)
	}
}
