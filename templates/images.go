package templates

import (
	"strconv"

	"github.com/a-h/templ"
)

// ImagesDefaults pre-fills the conversion form.
type ImagesDefaults struct {
	DPI     int
	Quality int
}

// PdfToImagesPage renders the PDF to JPG conversion form.
func PdfToImagesPage(data PageData, defaults ImagesDefaults) templ.Component {
	t := data.T
	return layout(data, t.T("images_title"), "images", func(w *writer) {
		w.raw(`<section class="hero"><h1>`)
		w.text(t.T("images_title"))
		w.raw(`</h1><p>`)
		w.text(t.T("images_description"))
		w.raw(`</p></section>`)

		w.raw(`<form id="images-form" class="card"><label class="field"><span>`)
		w.text(t.T("drop_instruction"))
		w.raw(`</span><input type="file" id="file" accept=".pdf,application/pdf"></label><p class="note">`)
		w.text(t.T("upload_limit_note", "{limit}", strconv.Itoa(data.UploadLimitMB)))
		w.raw(`</p><label class="field"><span>`)
		w.text(t.T("range_label"))
		w.raw(`</span><input type="text" id="page-range" placeholder="`)
		w.text(t.T("range_placeholder"))
		w.raw(`"></label><label class="field"><span>`)
		w.text(t.T("dpi_label"))
		w.rawf(`</span><input type="number" id="dpi" min="72" max="600" value="%d"></label><label class="field"><span>`, defaults.DPI)
		w.text(t.T("quality_label"))
		w.rawf(`</span><input type="number" id="quality" min="1" max="100" value="%d"></label>`, defaults.Quality)
		apiKeyField(w, data)
		w.raw(`<button type="submit" class="btn">`)
		w.text(t.T("convert_button"))
		w.raw(`</button><p id="status" class="status"></p></form>`)
		w.raw(imagesScript)
	})
}

const imagesScript = `<script>
(function () {
  const M = window.MESSAGES || {};
  const form = document.getElementById("images-form");
  const status = document.getElementById("status");
  form.addEventListener("submit", async (e) => {
    e.preventDefault();
    const file = document.getElementById("file").files[0];
    if (!file) { status.textContent = M.select_one; return; }
    const body = new FormData();
    body.append("file", file);
    body.append("page_range", document.getElementById("page-range").value.trim());
    body.append("dpi", document.getElementById("dpi").value);
    body.append("quality", document.getElementById("quality").value);
    const key = document.getElementById("api-key");
    const headers = key && key.value ? { "X-API-KEY": key.value } : {};
    status.textContent = M.converting;
    const res = await fetch("/pdf-to-images", { method: "POST", body, headers });
    if (!res.ok) {
      const err = await res.json().catch(() => ({}));
      status.textContent = (M.failed_prefix || "").replace("{message}", err.detail || res.statusText);
      return;
    }
    const url = URL.createObjectURL(await res.blob());
    const a = document.createElement("a");
    a.href = url;
    a.download = file.name.replace(/\.pdf$/i, "") + "_images.zip";
    a.click();
    URL.revokeObjectURL(url);
    status.textContent = "";
  });
})();
</script>`
