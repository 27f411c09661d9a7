package templates

import (
	"strconv"

	"github.com/a-h/templ"

	"pdfmerger/internal/models"
)

// IndexPage is the merge form followed by the most recent jobs.
func IndexPage(data PageData, jobs []models.Snapshot) templ.Component {
	t := data.T
	return layout(data, t.T("page_title"), "merge", func(w *writer) {
		w.raw(`<section class="hero"><h1>`)
		w.text(t.T("hero_title"))
		w.raw(`</h1><p>`)
		w.text(t.T("hero_description"))
		w.raw(`</p></section>`)

		w.raw(`<form id="merge-form" class="card"><label class="field"><span>`)
		w.text(t.T("drop_instruction"))
		w.raw(`</span><input type="file" id="files" multiple accept=".pdf,.jpg,.jpeg,.png,application/pdf,image/jpeg,image/png"></label><p class="note">`)
		w.text(t.T("upload_limit_note", "{limit}", strconv.Itoa(data.UploadLimitMB)))
		w.raw(`</p>`)

		// Row template cloned per selected file by the script below.
		w.raw(`<template id="file-row"><li class="file-row"><span class="file-name"></span><input type="text" class="range" placeholder="`)
		w.text(t.T("range_placeholder"))
		w.raw(`">`)
		selectField(w, t.T("paper_size_label"), "paper-size", []option{
			{"auto", t.T("paper_size_auto")}, {"A4", t.T("paper_size_a4")}, {"Letter", t.T("paper_size_letter")},
		})
		selectField(w, t.T("orientation_label"), "orientation", []option{
			{"auto", t.T("orientation_auto")}, {"portrait", t.T("orientation_portrait")}, {"landscape", t.T("orientation_landscape")},
		})
		selectField(w, t.T("scale_mode_label"), "fit-mode", []option{
			{"auto", t.T("scale_mode_auto")}, {"letterbox", t.T("scale_mode_letterbox")}, {"crop", t.T("scale_mode_crop")},
		})
		w.raw(`</li></template><ul id="file-list" class="file-list"></ul><p class="hint">`)
		w.text(t.T("range_hint"))
		w.raw(`</p>`)

		w.raw(`<label class="field"><span>`)
		w.text(t.T("output_label"))
		w.raw(`</span><input type="text" id="output-name" value="merged.pdf"></label>`)
		apiKeyField(w, data)
		w.raw(`<button type="submit" class="btn">`)
		w.text(t.T("merge_button"))
		w.raw(`</button><div class="progress"><div id="progress-bar" class="progress-bar"></div></div><p id="status" class="status"></p></form>`)

		recentJobs(w, data, jobs)
		w.raw(mergeScript)
	})
}

func recentJobs(w *writer, data PageData, jobs []models.Snapshot) {
	t := data.T
	w.raw(`<section class="card"><h2>`)
	w.text(t.T("recent_jobs"))
	w.raw(`</h2>`)
	if len(jobs) == 0 {
		w.raw(`<p class="empty">`)
		w.text(t.T("no_jobs"))
		w.raw(`</p></section>`)
		return
	}

	w.raw(`<table class="jobs"><tbody>`)
	for _, j := range jobs {
		w.rawf(`<tr class="job status-%s"><td>`, templ.EscapeString(string(j.Status)))
		w.text(j.OutputName)
		w.raw(`</td><td>`)
		w.text(t.T("status." + string(j.Status)))
		w.raw(`</td><td>`)
		w.text(strconv.FormatFloat(j.Percent, 'f', -1, 64) + "%")
		w.raw(`</td><td>`)
		switch {
		case j.HasResult:
			w.raw(`<a href="/merge/`)
			w.text(j.JobID)
			w.raw(`/result">`)
			w.text(t.T("download"))
			w.raw(`</a>`)
		case j.Error != "":
			w.raw(`<span class="error">`)
			w.text(j.Error)
			w.raw(`</span>`)
		}
		w.raw(`</td></tr>`)
	}
	w.raw(`</tbody></table></section>`)
}

const mergeScript = `<script>
(function () {
  const M = window.MESSAGES || {};
  const form = document.getElementById("merge-form");
  const input = document.getElementById("files");
  const list = document.getElementById("file-list");
  const rowTpl = document.getElementById("file-row");
  const bar = document.getElementById("progress-bar");
  const status = document.getElementById("status");
  const fmt = (s, k, v) => (s || "").replace("{" + k + "}", v);

  input.addEventListener("change", () => {
    list.innerHTML = "";
    for (const f of input.files) {
      const row = rowTpl.content.firstElementChild.cloneNode(true);
      row.querySelector(".file-name").textContent = f.name;
      list.appendChild(row);
    }
  });

  function headers() {
    const key = document.getElementById("api-key");
    return key && key.value ? { "X-API-KEY": key.value } : {};
  }

  async function follow(id) {
    let since = 0;
    for (;;) {
      const res = await fetch("/merge/" + id + "?since=" + since + "&wait=25", { headers: headers() });
      const snap = await res.json();
      if (!res.ok) throw new Error(snap.detail || res.statusText);
      since = snap.revision;
      bar.style.width = snap.percent + "%";
      status.textContent = fmt(M.merging_progress, "percent", Math.round(snap.percent));
      if (snap.status === "completed") return snap;
      if (snap.status === "error") throw new Error(snap.error);
    }
  }

  form.addEventListener("submit", async (e) => {
    e.preventDefault();
    if (!input.files.length) { status.textContent = M.select_one; return; }
    const body = new FormData();
    const ranges = [], options = [];
    list.querySelectorAll(".file-row").forEach((row) => {
      ranges.push(row.querySelector(".range").value.trim());
      options.push({
        paper_size: row.querySelector(".paper-size").value,
        orientation: row.querySelector(".orientation").value,
        fit_mode: row.querySelector(".fit-mode").value,
      });
    });
    for (const f of input.files) body.append("files", f);
    body.append("ranges", JSON.stringify(ranges));
    body.append("options", JSON.stringify(options));
    body.append("output_name", document.getElementById("output-name").value);
    status.textContent = M.merging;
    bar.style.width = "0%";
    try {
      const res = await fetch("/merge", { method: "POST", body, headers: headers() });
      const job = await res.json();
      if (!res.ok) throw new Error(job.detail || M.merge_failed);
      await follow(job.job_id);
      const pdf = await fetch("/merge/" + job.job_id + "/result", { headers: headers() });
      if (!pdf.ok) throw new Error(M.merge_failed);
      const url = URL.createObjectURL(await pdf.blob());
      const a = document.createElement("a");
      a.href = url;
      a.download = job.output_name;
      a.click();
      URL.revokeObjectURL(url);
      status.textContent = M.merged;
    } catch (err) {
      status.textContent = fmt(M.failed_prefix, "message", err.message);
    }
  });
})();
</script>`
