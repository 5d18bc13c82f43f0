//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
	"github.com/SbTchR/TimelineGenerator/internal/render"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine(engine.Options{
		Measurer: engine.DefaultMeasurer(),
		Paper:    pagination.A4,
	})

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	api.Set("loadDocument", js.FuncOf(loadDocument))
	api.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	api.Set("addEvent", js.FuncOf(addEvent))
	api.Set("updateEvent", js.FuncOf(updateEvent))
	api.Set("deleteEvent", js.FuncOf(deleteEvent))
	api.Set("toggleEvent", js.FuncOf(toggleEvent))
	api.Set("clearEvents", js.FuncOf(clearEvents))
	api.Set("addPeriod", js.FuncOf(addPeriod))
	api.Set("updatePeriod", js.FuncOf(updatePeriod))
	api.Set("deletePeriod", js.FuncOf(deletePeriod))
	api.Set("togglePeriod", js.FuncOf(togglePeriod))
	api.Set("clearPeriods", js.FuncOf(clearPeriods))
	api.Set("applySettings", js.FuncOf(applySettings))
	api.Set("resetSettings", js.FuncOf(resetSettings))
	api.Set("setView", js.FuncOf(setView))
	api.Set("beginDrag", js.FuncOf(beginDrag))
	api.Set("moveDrag", js.FuncOf(moveDrag))
	api.Set("endDrag", js.FuncOf(endDrag))

	// --- Queries (frontend ← backend) ---
	api.Set("getDocument", js.FuncOf(getDocument))
	api.Set("layout", js.FuncOf(layout))
	api.Set("drawCommands", js.FuncOf(drawCommands))
	api.Set("guides", js.FuncOf(guides))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("dragPhase", js.FuncOf(dragPhase))
	api.Set("viewMatrix", js.FuncOf(viewMatrix))
	api.Set("staticHTML", js.FuncOf(staticHTML))

	js.Global().Set("friseEngine", api)
	js.Global().Set("friseWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok(v any) any {
	data, err := json.Marshal(map[string]any{"ok": true, "result": v})
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

func fail(err error) any {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return js.ValueOf(string(data))
}

func missing(what string) any {
	data, _ := json.Marshal(map[string]string{"error": "missing " + what})
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("document JSON")
	}
	if err := eng.LoadDocument([]byte(args[0].String())); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func loadSampleDocument(this js.Value, args []js.Value) any {
	eng.LoadSampleDocument()
	return ok(nil)
}

func addEvent(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("event JSON")
	}
	var in document.EventInput
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return fail(err)
	}
	return ok(eng.AddEvent(in))
}

func updateEvent(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("event id and JSON")
	}
	var in document.EventInput
	if err := json.Unmarshal([]byte(args[1].String()), &in); err != nil {
		return fail(err)
	}
	ev, err := eng.UpdateEvent(args[0].String(), in)
	if err != nil {
		return fail(err)
	}
	return ok(ev)
}

func deleteEvent(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("event id")
	}
	if err := eng.DeleteEvent(args[0].String()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func toggleEvent(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("event id")
	}
	visible, err := eng.ToggleEvent(args[0].String())
	if err != nil {
		return fail(err)
	}
	return ok(visible)
}

func clearEvents(this js.Value, args []js.Value) any {
	eng.ClearEvents()
	return ok(nil)
}

func addPeriod(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("period JSON")
	}
	var in document.PeriodInput
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return fail(err)
	}
	return ok(eng.AddPeriod(in))
}

func updatePeriod(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("period id and JSON")
	}
	var in document.PeriodInput
	if err := json.Unmarshal([]byte(args[1].String()), &in); err != nil {
		return fail(err)
	}
	p, err := eng.UpdatePeriod(args[0].String(), in)
	if err != nil {
		return fail(err)
	}
	return ok(p)
}

func deletePeriod(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("period id")
	}
	if err := eng.DeletePeriod(args[0].String()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func togglePeriod(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("period id")
	}
	visible, err := eng.TogglePeriod(args[0].String())
	if err != nil {
		return fail(err)
	}
	return ok(visible)
}

func clearPeriods(this js.Value, args []js.Value) any {
	eng.ClearPeriods()
	return ok(nil)
}

func applySettings(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("settings JSON")
	}
	if err := eng.ApplySettings([]byte(args[0].String())); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func resetSettings(this js.Value, args []js.Value) any {
	eng.ResetSettings()
	return ok(nil)
}

// setView(zoom, scrollX, scrollY). Pointer positions passed to the drag
// and hit-test functions are in screen coordinates under this view.
func setView(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return missing("zoom and scroll offsets")
	}
	if err := eng.SetView(args[0].Float(), args[1].Float(), args[2].Float()); err != nil {
		return fail(err)
	}
	return ok(eng.ViewMatrix().ToSlice())
}

func beginDrag(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return missing("item id and pointer position")
	}
	if err := eng.BeginDrag(args[0].String(), args[1].Float(), args[2].Float()); err != nil {
		return fail(err)
	}
	return ok(nil)
}

func moveDrag(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("pointer position")
	}
	pos, err := eng.MoveDrag(args[0].Float(), args[1].Float())
	if err != nil {
		return fail(err)
	}
	return ok(pos)
}

func endDrag(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("pointer position")
	}
	commit, err := eng.EndDrag(args[0].Float(), args[1].Float())
	if err != nil {
		return fail(err)
	}
	return ok(commit)
}

// --- Query Handlers ---

func getDocument(this js.Value, args []js.Value) any {
	data, err := eng.DocumentJSON()
	if err != nil {
		return fail(err)
	}
	return ok(json.RawMessage(data))
}

func layout(this js.Value, args []js.Value) any {
	l, err := eng.Layout()
	if err != nil {
		return fail(err)
	}
	return ok(l)
}

func drawCommands(this js.Value, args []js.Value) any {
	cmds, err := eng.DrawCommands()
	if err != nil {
		return fail(err)
	}
	return ok(cmds)
}

func guides(this js.Value, args []js.Value) any {
	g, err := eng.Guides()
	if err != nil {
		return fail(err)
	}
	return ok(g)
}

func hitTest(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("position")
	}
	hit, found := eng.HitTest(args[0].Float(), args[1].Float())
	if !found {
		return ok(nil)
	}
	return ok(hit)
}

func dragPhase(this js.Value, args []js.Value) any {
	return ok(eng.DragPhase().String())
}

func viewMatrix(this js.Value, args []js.Value) any {
	return ok(eng.ViewMatrix().ToSlice())
}

func staticHTML(this js.Value, args []js.Value) any {
	l, err := eng.Layout()
	if err != nil {
		return fail(err)
	}
	opts := render.Options{SkipMissing: true}
	if len(args) > 0 && args[0].Type() == js.TypeString {
		opts.Title = args[0].String()
	}
	html, err := render.StaticHTML(l, opts)
	if err != nil {
		return fail(err)
	}
	return ok(html)
}
