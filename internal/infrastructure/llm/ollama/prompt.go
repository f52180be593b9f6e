package ollama

import (
	"fmt"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

func buildIntentPrompt(query, sessionContext string) string {
	var b strings.Builder
	b.WriteString(`Kamu adalah classifier untuk asisten layanan warga desa/kelurahan.
Tentukan apakah pertanyaan warga membutuhkan pencarian basis pengetahuan desa
(jam layanan, persyaratan surat, prosedur administrasi, data desa) atau tidak.

Jawab HANYA dengan JSON persis seperti ini:
{"decision":"RAG_REQUIRED","confidence":0.9,"categories":["layanan"]}

decision: "RAG_REQUIRED" jika jawaban harus bersumber dari data desa,
"RAG_SKIP" jika pertanyaan umum/obrolan yang tidak butuh data desa.
confidence: angka 0..1.
categories: kategori pengetahuan yang relevan, boleh kosong.
`)
	if sessionContext != "" {
		b.WriteString("\nKonteks percakapan:\n")
		b.WriteString(sessionContext)
		b.WriteString("\n")
	}
	b.WriteString("\nPertanyaan warga: ")
	b.WriteString(query)
	return b.String()
}

func buildExpansionPrompt(query string) string {
	return fmt.Sprintf(`Berikut pertanyaan warga ke kantor desa/kelurahan:

"%s"

Tuliskan 3-5 sinonim atau istilah terkait dalam bahasa Indonesia yang membantu
pencarian dokumen (contoh: "KTP" -> "kartu tanda penduduk identitas kependudukan").
Jawab hanya dengan daftar kata dipisah spasi, tanpa penjelasan.`, query)
}

func buildAnswerPrompt(question string, result domain.RAGResult) string {
	var b strings.Builder
	b.WriteString(`Kamu adalah asisten layanan warga desa/kelurahan yang ramah dan akurat.
Jawab pertanyaan warga HANYA berdasarkan informasi di bawah ini.
Jika informasinya tidak cukup, katakan dengan jujur dan sarankan warga
menghubungi kantor desa/kelurahan.
Jika ada tanda konflik data, sebutkan kedua versi dan sumbernya.

`)
	if result.ContextString != "" {
		b.WriteString(result.ContextString)
		b.WriteString("\n\n")
	} else {
		b.WriteString("(Tidak ada informasi desa yang relevan ditemukan.)\n\n")
	}
	b.WriteString("Pertanyaan warga: ")
	b.WriteString(question)
	b.WriteString("\n\nJawaban:")
	return b.String()
}
