package plot

type style struct {
	Color       string
	LineStyle   string
	Mark        string
	MarkOptions string
}

var subjectStyles = []style{
	{Color: "red", LineStyle: "dotted", Mark: "triangle*", MarkOptions: "scale=0.5,fill=red"},
	{Color: "blue", LineStyle: "densely dashed", Mark: "square", MarkOptions: "scale=0.3"},
	{Color: "green!70!black", LineStyle: "densely dotted", Mark: "*", MarkOptions: "scale=0.3,fill=green!70!black"},
	{Color: "orange", LineStyle: "dashdotted", Mark: "diamond*", MarkOptions: "scale=0.5,fill=orange"},
	{Color: "purple", LineStyle: "loosely dotted", Mark: "pentagon*", MarkOptions: "scale=0.5,fill=purple"},
	{Color: "brown", LineStyle: "densely dashed", Mark: "x", MarkOptions: "scale=0.5"},
	{Color: "black", LineStyle: "densely dotted", Mark: "o", MarkOptions: "scale=0.3"},
	{Color: "cyan", LineStyle: "solid", Mark: "pentagon", MarkOptions: "scale=0.5"},
}

// styleFor returns the pgfplots options for the i-th subject.
func styleFor(i int) string {
	if i < 0 {
		i = 0
	}
	s := subjectStyles[i%len(subjectStyles)]
	options := s.Color + "," + s.LineStyle + ",thick"
	if s.Mark != "" {
		options += ",mark=" + s.Mark
		if s.MarkOptions != "" {
			options += ",mark options={" + s.MarkOptions + "}"
		}
	}
	return options
}
