package processor

import "testing"

func TestSourceName(t *testing.T) {
	cases := []struct {
		name     string
		link     string
		title    string
		explicit string
		want     string
	}{
		{"plain domain", "https://www.cnbc.com/2024/01/x.html", "Stocks", "", "Cnbc"},
		{"alias by domain", "https://news.detik.com/berita/d-1", "Banjir", "", "Detik"},
		{"alias keeps order", "https://www.kompas.tv/a", "x", "", "Kompas"},
		{"google title suffix", "https://news.google.com/articles/abc", "Banjir di Jakarta - Tempo.co", "", "Tempo"},
		{"google explicit field wins", "https://news.google.com/a", "Judul - Other", "Liputan6.com", "Liputan 6"},
		{"google no suffix", "https://news.google.com/a", "Judul tanpa sumber", "", "News"},
		{"unknown alias from suffix", "https://google.com/a", "Title - The Verge", "", "The Verge"},
		{"empty link", "", "No source", "", "Unknown"},
		{"bad link", "://bad", "x", "", "Unknown"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SourceName(c.link, c.title, c.explicit); got != c.want {
				t.Fatalf("SourceName(%q, %q, %q) = %q, want %q", c.link, c.title, c.explicit, got, c.want)
			}
		})
	}
}
