package sanitize

import "testing"

func TestIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		rep  Report
	}{
		{
			name: "handle and link",
			in:   "Segue @maria.dev e veja https://exemplo.com/x agora",
			want: "Segue e veja agora",
			rep:  Report{Handles: 1, Links: 1},
		},
		{
			name: "email",
			in:   "Me chama em contato@exemplo.com.br hoje",
			want: "Me chama em hoje",
			rep:  Report{Emails: 1},
		},
		{
			name: "self reference",
			in:   "Olha, como uma IA, eu recomendo começar hoje.",
			want: "Olha, eu recomendo começar hoje.",
			rep:  Report{SelfReferences: 1},
		},
		{
			name: "clean text untouched",
			in:   "| 0-3s | Close | Olha  isso |",
			want: "| 0-3s | Close | Olha  isso |",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rep := Identity(tt.in)
			if got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
			if rep != tt.rep {
				t.Errorf("report = %+v, want %+v", rep, tt.rep)
			}
		})
	}
}

func TestIdentityKeepsLines(t *testing.T) {
	in := "linha um @fulano\n\nlinha três"
	got, rep := Identity(in)
	if got != "linha um\n\nlinha três" || rep.Handles != 1 {
		t.Errorf("got %q %+v", got, rep)
	}
}
