package i18n

var catalogs = map[Locale]map[string]string{
	English: {
		"page_title":              "PDF Merger",
		"hero_title":              "PDF Merger",
		"hero_description":        "Combine multiple PDF documents and JPG or PNG images into a single file and control the order and page ranges with ease.",
		"drop_instruction":        "Choose PDF, JPG or PNG files",
		"upload_limit_note":       "You can upload up to {limit} MB in total.",
		"output_label":            "Output filename",
		"api_key_label":           "API key",
		"api_key_placeholder":     "Optional - only if required",
		"paper_size_label":        "Paper size",
		"paper_size_auto":         "Auto",
		"paper_size_a4":           "A4",
		"paper_size_letter":       "U.S. Letter",
		"orientation_label":       "Orientation",
		"orientation_auto":        "Auto",
		"orientation_portrait":    "Portrait",
		"orientation_landscape":   "Landscape",
		"scale_mode_label":        "Scale mode",
		"scale_mode_auto":         "Auto",
		"scale_mode_letterbox":    "Letterbox (contain)",
		"scale_mode_crop":         "Crop (cover)",
		"range_label":             "Page ranges",
		"range_placeholder":       "Page ranges e.g. 1-3,5",
		"range_hint":              "Page range example: 1-3,5 (leave empty for entire file)",
		"merge_button":            "Merge to PDF",
		"recent_jobs":             "Recent jobs",
		"no_jobs":                 "No jobs yet.",
		"download":                "Download",
		"nav_merge":               "Merge",
		"nav_pdf_to_images":       "PDF to images",
		"images_title":            "PDF to images",
		"images_description":      "Render the pages of a PDF as JPG images and download them as a ZIP archive.",
		"dpi_label":               "Resolution (DPI, 72-600)",
		"quality_label":           "JPG quality (1-100)",
		"convert_button":          "Convert",
		"status.queued":           "Queued",
		"status.running":          "Running",
		"status.completed":        "Completed",
		"status.error":            "Failed",
		"client.merging":          "Merging files…",
		"client.merging_progress": "Merging files… {percent}%",
		"client.merged":           "Merged successfully! Your download should begin automatically.",
		"client.merge_failed":     "Failed to merge files.",
		"client.failed_prefix":    "Failed: {message}",
		"client.select_one":       "Select at least one file.",
		"client.converting":       "Converting…",
	},
	Korean: {
		"page_title":              "PDF 병합기",
		"hero_title":              "PDF 병합기",
		"hero_description":        "여러 PDF 문서와 JPG, PNG 이미지를 하나의 파일로 합치고 순서와 페이지 범위를 지정하세요.",
		"drop_instruction":        "PDF, JPG 또는 PNG 파일을 선택하세요",
		"upload_limit_note":       "총 {limit}MB까지 업로드할 수 있습니다.",
		"output_label":            "출력 파일 이름",
		"api_key_label":           "API 키",
		"api_key_placeholder":     "필요한 경우에만 입력",
		"paper_size_label":        "용지 크기",
		"paper_size_auto":         "자동",
		"paper_size_a4":           "A4",
		"paper_size_letter":       "U.S. 레터",
		"orientation_label":       "방향",
		"orientation_auto":        "자동",
		"orientation_portrait":    "세로",
		"orientation_landscape":   "가로",
		"scale_mode_label":        "배치 방식",
		"scale_mode_auto":         "자동",
		"scale_mode_letterbox":    "레터박스(전체 보기)",
		"scale_mode_crop":         "크롭(채우기)",
		"range_label":             "페이지 범위",
		"range_placeholder":       "페이지 범위 예: 1-3,5",
		"range_hint":              "페이지 범위 예시: 1-3,5 (비워두면 전체 페이지)",
		"merge_button":            "PDF로 병합",
		"recent_jobs":             "최근 작업",
		"no_jobs":                 "아직 작업이 없습니다.",
		"download":                "다운로드",
		"nav_merge":               "병합",
		"nav_pdf_to_images":       "PDF를 이미지로",
		"images_title":            "PDF를 이미지로",
		"images_description":      "PDF 페이지를 JPG 이미지로 변환하여 ZIP 파일로 내려받습니다.",
		"dpi_label":               "해상도 (DPI, 72-600)",
		"quality_label":           "JPG 품질 (1-100)",
		"convert_button":          "변환",
		"status.queued":           "대기 중",
		"status.running":          "진행 중",
		"status.completed":        "완료",
		"status.error":            "실패",
		"client.merging":          "파일 병합 중…",
		"client.merging_progress": "파일 병합 중… {percent}%",
		"client.merged":           "병합이 완료되었습니다! 다운로드가 자동으로 시작됩니다.",
		"client.merge_failed":     "파일 병합에 실패했습니다!",
		"client.failed_prefix":    "실패: {message}",
		"client.select_one":       "최소 한 개의 파일을 선택하세요.",
		"client.converting":       "변환 중…",
	},
}
